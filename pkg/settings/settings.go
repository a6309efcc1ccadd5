// Package settings persists the browser's display preferences.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key is the storage key of the settings blob.
const Key = "eros_cache_browser_settings"

// DefaultBlendModes is the comma separated list offered for BlendMode.
const DefaultBlendModes = "normal,multiply,screen,overlay,darken,lighten,color-dodge,color-burn,hard-light,soft-light,difference,exclusion,hue,saturation,color,luminosity"

// Setting names as they appear in the stored blob.
const (
	OverlayEnabled = "overlayEnabled"
	ShowTagBadges  = "showTagBadges"
	BlendMode      = "blendMode"
	BlendModes     = "blendModes"
	Opacity        = "opacity"
	Columns        = "columns"
	BadgeSize      = "badgeSize"
	CacheBusting   = "cacheBusting"
	CurrentTab     = "currentTab"
)

// ErrUnknownKey is returned by Set for a name that is not a setting.
var ErrUnknownKey = errors.New("settings: unknown key")

// Settings are the user preferences. Values outside their range are clamped.
type Settings struct {
	OverlayEnabled bool    `json:"overlayEnabled" yaml:"overlayEnabled"`
	ShowTagBadges  bool    `json:"showTagBadges" yaml:"showTagBadges"`
	BlendMode      string  `json:"blendMode" yaml:"blendMode"`
	BlendModes     string  `json:"blendModes" yaml:"blendModes"`
	Opacity        float64 `json:"opacity" yaml:"opacity"`
	Columns        int     `json:"columns" yaml:"columns"`
	BadgeSize      int     `json:"badgeSize" yaml:"badgeSize"`
	CacheBusting   bool    `json:"cacheBusting" yaml:"cacheBusting"`
	CurrentTab     string  `json:"currentTab" yaml:"currentTab"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		OverlayEnabled: false,
		ShowTagBadges:  true,
		BlendMode:      "luminosity",
		BlendModes:     DefaultBlendModes,
		Opacity:        0.25,
		Columns:        4,
		BadgeSize:      9,
		CacheBusting:   true,
		CurrentTab:     "depth",
	}
}

// Decode merges a stored blob over the defaults. Corrupt data yields the
// defaults.
func Decode(data []byte) Settings {
	s := Defaults()
	if len(data) == 0 {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults()
	}
	return s.Clamp()
}

// Encode serializes s for storage.
func (s Settings) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Clamp bounds the numeric settings.
func (s Settings) Clamp() Settings {
	s.Opacity = min(max(s.Opacity, 0), 1)
	s.Columns = min(max(s.Columns, 1), 8)
	s.BadgeSize = min(max(s.BadgeSize, 8), 16)
	return s
}

// Modes splits BlendModes.
func (s Settings) Modes() []string {
	var out []string
	for _, m := range strings.Split(s.BlendModes, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Keys lists every setting name.
func Keys() []string {
	return []string{OverlayEnabled, ShowTagBadges, BlendMode, BlendModes, Opacity, Columns, BadgeSize, CacheBusting, CurrentTab}
}

// Continuous reports whether key changes in small steps and should be
// persisted after a quiet period rather than on every change.
func Continuous(key string) bool {
	switch key {
	case Opacity, Columns, BadgeSize:
		return true
	}
	return false
}

// Set parses value for key and returns the updated, clamped settings.
func (s Settings) Set(key, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case OverlayEnabled:
		s.OverlayEnabled, err = strconv.ParseBool(value)
	case ShowTagBadges:
		s.ShowTagBadges, err = strconv.ParseBool(value)
	case CacheBusting:
		s.CacheBusting, err = strconv.ParseBool(value)
	case BlendMode:
		s.BlendMode = value
	case BlendModes:
		s.BlendModes = value
	case CurrentTab:
		s.CurrentTab = value
	case Opacity:
		s.Opacity, err = strconv.ParseFloat(value, 64)
	case Columns:
		s.Columns, err = strconv.Atoi(value)
	case BadgeSize:
		s.BadgeSize, err = strconv.Atoi(value)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err != nil {
		return s, fmt.Errorf("settings: %s: %w", key, err)
	}
	return s.Clamp(), nil
}

// Get renders the value of key.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case OverlayEnabled:
		return strconv.FormatBool(s.OverlayEnabled), nil
	case ShowTagBadges:
		return strconv.FormatBool(s.ShowTagBadges), nil
	case CacheBusting:
		return strconv.FormatBool(s.CacheBusting), nil
	case BlendMode:
		return s.BlendMode, nil
	case BlendModes:
		return s.BlendModes, nil
	case CurrentTab:
		return s.CurrentTab, nil
	case Opacity:
		return strconv.FormatFloat(s.Opacity, 'f', -1, 64), nil
	case Columns:
		return strconv.Itoa(s.Columns), nil
	case BadgeSize:
		return strconv.Itoa(s.BadgeSize), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}
