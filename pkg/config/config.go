// Package config loads cachemap's application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Bus transports.
const (
	BusWebSocket = "websocket"
	BusNATS      = "nats"
	BusNone      = "none"
)

// Config is the resolved configuration.
type Config struct {
	Server      string        `json:"server" yaml:"server"`
	StoragePath string        `json:"storage_path" yaml:"storage_path"`
	SettingsDir string        `json:"settings_dir" yaml:"settings_dir"`
	Bus         string        `json:"bus" yaml:"bus"`
	NATSURL     string        `json:"nats_url" yaml:"nats_url"`
	RetryDelay  time.Duration `json:"retry_delay" yaml:"retry_delay"`
	Debounce    time.Duration `json:"debounce" yaml:"debounce"`
	TagTTL      time.Duration `json:"tag_ttl" yaml:"tag_ttl"`
	RateLimit   float64       `json:"rate_limit" yaml:"rate_limit"`
}

// Load reads .cachemap.yaml from CACHEMAP_CONFIG_PATH, the working directory
// or the home directory, with CACHEMAP_* environment overrides. A .env file
// in the working directory is loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("server", "http://127.0.0.1:8188")
	v.SetDefault("storage_path", "")
	v.SetDefault("settings_dir", "~/.cachemap")
	v.SetDefault("bus", BusWebSocket)
	v.SetDefault("nats_url", "")
	v.SetDefault("retry_delay", "350ms")
	v.SetDefault("debounce", "30ms")
	v.SetDefault("tag_ttl", "0s")
	v.SetDefault("rate_limit", 20)

	v.SetConfigName(".cachemap") // .yaml is implicit
	v.SetEnvPrefix("CACHEMAP")
	v.AutomaticEnv()

	if override := os.Getenv("CACHEMAP_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	settingsDir, err := homedir.Expand(v.GetString("settings_dir"))
	if err != nil {
		return nil, fmt.Errorf("config: settings_dir: %w", err)
	}
	cfg := &Config{
		Server:      strings.TrimSpace(v.GetString("server")),
		StoragePath: v.GetString("storage_path"),
		SettingsDir: settingsDir,
		Bus:         strings.ToLower(strings.TrimSpace(v.GetString("bus"))),
		NATSURL:     v.GetString("nats_url"),
		RetryDelay:  v.GetDuration("retry_delay"),
		Debounce:    v.GetDuration("debounce"),
		TagTTL:      v.GetDuration("tag_ttl"),
		RateLimit:   v.GetFloat64("rate_limit"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("config: server is required")
	}
	switch c.Bus {
	case BusWebSocket, BusNATS, BusNone:
	default:
		return fmt.Errorf("config: unknown bus %q", c.Bus)
	}
	if c.RetryDelay < 0 || c.Debounce < 0 || c.TagTTL < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}
