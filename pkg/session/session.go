// Package session implements the browsing session: one shared view over the
// asset catalog that at most one consumer is linked to at a time.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/settings"
	"tableflip.dev/cachemap/pkg/tags"
)

var (
	// ErrNoSelection is returned by operations that act on the selected
	// asset when nothing is selected.
	ErrNoSelection = errors.New("session: no asset selected")
	// ErrCanceled is returned when the user declines a confirmation.
	ErrCanceled = errors.New("session: canceled")
	// ErrUnknownCategory is returned for a category outside the enumeration.
	ErrUnknownCategory = errors.New("session: unknown category")
	// ErrClosed is returned by listing operations on a closed session.
	ErrClosed = errors.New("session: closed")
)

// Consumer is an external node that shows one asset. The session reads its
// cache path and reads and writes its filename; it never owns its lifecycle.
type Consumer interface {
	ID() string
	CachePath() string
	Filename() string
	// SetFilename stores the value and runs the consumer's own change
	// notification.
	SetFilename(string)
	// SetPreview replaces the preview image. Nil clears it.
	SetPreview([]byte)
}

// Catalog lists assets.
type Catalog interface {
	SetStoragePath(string)
	StoragePath() string
	List(ctx context.Context, category asset.Category) ([]string, error)
	Resolve(id string) string
}

// TagStore is the tag mirror.
type TagStore interface {
	LoadIndex(ctx context.Context) error
	LoadTagsFor(ctx context.Context, basename string) (tags.Set, error)
	Tags(basename string) (tags.Set, bool)
	AddTag(ctx context.Context, basename, tag string) error
	RemoveTag(ctx context.Context, basename, tag string) error
	AutoTag(ctx context.Context, basename string) (json.RawMessage, error)
	DeleteAsset(ctx context.Context, req remote.DeleteRequest) (remote.DeleteResult, error)
	Invalidate(basename string)
}

// Settings holds the live preferences.
type Settings interface {
	Current() settings.Settings
	Set(key, value string) (settings.Settings, error)
}

// Previewer loads preview images.
type Previewer interface {
	Preview(ctx context.Context, req remote.PreviewRequest) ([]byte, error)
}

// Prompter asks the user for confirmation and reports failures.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
	Alert(message string)
}

// FilterMode selects what ApplyFilter does with a tag.
type FilterMode int

const (
	// FilterReplace makes tag the only active filter.
	FilterReplace FilterMode = iota
	// FilterToggle adds or removes tag from the active filters.
	FilterToggle
	// FilterTagSelected tags the selected asset instead of filtering.
	FilterTagSelected
)

// Mode is the state machine position.
type Mode string

const (
	ModeClosed   Mode = "closed"
	ModeUnlinked Mode = "open"
	ModeLinked   Mode = "linked"
)

// State is a snapshot of the session.
type State struct {
	Mode        Mode           `json:"mode" yaml:"mode"`
	Consumer    string         `json:"consumer,omitempty" yaml:"consumer,omitempty"`
	Category    asset.Category `json:"category" yaml:"category"`
	StoragePath string         `json:"storagePath,omitempty" yaml:"storagePath,omitempty"`
	Selected    string         `json:"selected,omitempty" yaml:"selected,omitempty"`
	Filters     []string       `json:"filters,omitempty" yaml:"filters,omitempty"`
	Query       string         `json:"query,omitempty" yaml:"query,omitempty"`
	Assets      int            `json:"assets" yaml:"assets"`
}

// Options carries the session's collaborators. Catalog, Tags and Settings
// are required.
type Options struct {
	Catalog  Catalog
	Tags     TagStore
	Settings Settings
	Previews Previewer
	Prompter Prompter
	Logger   *zap.Logger
}

const eventBuffer = 64

// Session is safe for concurrent use. Backend calls never run under its lock
// and consumer callbacks run after it is released.
type Session struct {
	catalog  Catalog
	tags     TagStore
	settings Settings
	previews Previewer
	prompter Prompter
	log      *zap.Logger

	mu         sync.Mutex
	open       bool
	consumer   Consumer
	category   asset.Category
	selected   string
	filters    []string
	query      string
	listing    []string
	generation uint64

	listingCategory  asset.Category
	pendingWriteBack bool

	eventCh chan Event
}

// New creates a closed session. The starting category is the persisted tab.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	category := asset.Depth
	if c, ok := asset.ParseCategory(opts.Settings.Current().CurrentTab); ok {
		category = c
	}
	return &Session{
		catalog:  opts.Catalog,
		tags:     opts.Tags,
		settings: opts.Settings,
		previews: opts.Previews,
		prompter: opts.Prompter,
		log:      opts.Logger.Named("session"),
		category: category,
		eventCh:  make(chan Event, eventBuffer),
	}
}

// Events returns a channel of session notifications. Events are dropped when
// nobody drains the channel.
func (s *Session) Events() <-chan Event {
	return s.eventCh
}

// Open activates the session, linking c first when it is not nil so the
// category and selection are seeded from it. The initial listing does not
// write back to the consumer.
func (s *Session) Open(ctx context.Context, c Consumer) error {
	if c != nil {
		s.LinkConsumer(c)
	}
	s.mu.Lock()
	s.open = true
	category := s.category
	s.mu.Unlock()
	s.emit(Event{Type: EventOpened, Category: category.String()})

	if err := s.tags.LoadIndex(ctx); err != nil {
		s.log.Warn("tag index unavailable", zap.Error(err))
	}
	return s.refresh(ctx, false)
}

// Close deactivates the view. Fetches still in flight are ignored when they
// complete. The mirror and the link are kept.
func (s *Session) Close() {
	s.mu.Lock()
	s.open = false
	s.generation++
	s.pendingWriteBack = false
	s.mu.Unlock()
	s.emit(Event{Type: EventClosed})
}

// LinkConsumer makes c the linked consumer, replacing any previous one
// without notifying it. The catalog is scoped to c's cache path and the
// selection is seeded from c's filename.
func (s *Session) LinkConsumer(c Consumer) {
	if c == nil {
		return
	}
	cachePath := c.CachePath()
	filename := strings.TrimSpace(c.Filename())

	s.mu.Lock()
	s.consumer = c
	s.catalog.SetStoragePath(cachePath)
	var tab asset.Category
	if filename != "" {
		category, name := asset.Split(filename)
		if category != "" {
			s.category = category
			tab = category
		}
		s.selected = name
	}
	category, selected := s.category, s.selected
	s.mu.Unlock()

	if tab != "" {
		s.persistTab(tab)
	}
	s.log.Debug("consumer linked",
		zap.String("consumer", c.ID()),
		zap.String("cache_path", cachePath),
		zap.String("category", category.String()),
		zap.String("selected", selected))
	s.emit(Event{Type: EventLinked, Consumer: c.ID(), Category: category.String(), Selected: selected})
}

// SwitchCategory changes the active category and reloads the listing. A
// linked consumer follows the selection into the new category.
func (s *Session) SwitchCategory(ctx context.Context, category asset.Category) error {
	c, ok := asset.ParseCategory(string(category))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	s.mu.Lock()
	s.category = c
	linked := s.consumer != nil
	s.mu.Unlock()

	s.persistTab(c)
	s.emit(Event{Type: EventCategoryChanged, Category: c.String()})
	return s.refresh(ctx, linked)
}

// SelectAsset selects id. A linked consumer receives the full asset path and
// a fresh preview.
func (s *Session) SelectAsset(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	s.selected = id
	c := s.consumer
	category := s.category
	s.mu.Unlock()

	s.emit(Event{Type: EventSelectionChanged, Selected: id})
	if c != nil && id != "" {
		s.writeBack(ctx, c, category, id)
	}
	return nil
}

// ApplyFilter applies one tag gesture. See FilterMode.
func (s *Session) ApplyFilter(ctx context.Context, tag string, mode FilterMode) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return tags.ErrEmptyTag
	}
	if mode == FilterTagSelected {
		return s.AddTag(ctx, tag)
	}

	s.mu.Lock()
	switch mode {
	case FilterToggle:
		if idx := indexFold(s.filters, tag); idx >= 0 {
			s.filters = append(s.filters[:idx:idx], s.filters[idx+1:]...)
		} else {
			s.filters = append(s.filters, tag)
		}
	default:
		s.filters = []string{tag}
	}
	count := len(s.filters)
	s.mu.Unlock()

	s.emit(Event{Type: EventFiltersChanged, Count: count})
	return nil
}

// ClearFilters drops every active filter.
func (s *Session) ClearFilters() {
	s.mu.Lock()
	s.filters = nil
	s.mu.Unlock()
	s.emit(Event{Type: EventFiltersChanged})
}

// SetSearchQuery sets the free-text filter.
func (s *Session) SetSearchQuery(q string) {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	s.emit(Event{Type: EventFiltersChanged})
}

// DeleteAsset deletes the selected asset after confirmation, from its
// category only or from every category when all is set. A backend refusal is
// reported through the Prompter and leaves state untouched.
func (s *Session) DeleteAsset(ctx context.Context, all bool) error {
	s.mu.Lock()
	selected := s.selected
	category := s.category
	s.mu.Unlock()
	if selected == "" {
		return ErrNoSelection
	}
	if prefix, _ := asset.Split(selected); prefix != "" {
		category = prefix
	}
	basename := s.catalog.Resolve(selected)

	if s.prompter != nil {
		msg := fmt.Sprintf("Delete %s from %s?", basename, category)
		if all {
			msg = fmt.Sprintf("Delete %s from every category?", basename)
		}
		ok, err := s.prompter.Confirm(ctx, msg)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCanceled
		}
	}

	req := remote.DeleteRequest{
		Basename:  basename,
		DeleteAll: all,
		CachePath: s.catalog.StoragePath(),
	}
	if !all {
		req.Subfolder = category.String()
	}
	res, err := s.tags.DeleteAsset(ctx, req)
	if err != nil {
		var derr *tags.DeleteError
		if errors.As(err, &derr) && s.prompter != nil {
			s.prompter.Alert(derr.Error())
		}
		return err
	}

	s.mu.Lock()
	if s.catalog.Resolve(s.selected) == basename {
		s.selected = ""
	}
	c := s.consumer
	s.mu.Unlock()

	if c != nil && consumerShows(c.Filename(), basename, category, all) {
		c.SetFilename("")
		c.SetPreview(nil)
	}
	s.log.Info("asset deleted", zap.String("basename", basename), zap.Strings("deleted", res.Deleted))
	s.emit(Event{Type: EventAssetDeleted, Selected: basename, Count: len(res.Deleted)})

	if err := s.tags.LoadIndex(ctx); err != nil {
		s.log.Warn("tag index unavailable", zap.Error(err))
	}
	if err := s.refresh(ctx, false); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// consumerShows reports whether a consumer filename points at the deleted
// asset.
func consumerShows(filename, basename string, category asset.Category, all bool) bool {
	if filename == "" || asset.Basename(filename) != basename {
		return false
	}
	prefix, _ := asset.Split(filename)
	return all || prefix == "" || prefix == category
}

// Refresh reloads the listing and the tag index.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.tags.LoadIndex(ctx); err != nil {
		s.log.Warn("tag index unavailable", zap.Error(err))
	}
	return s.refresh(ctx, false)
}

// AddTag tags the selected asset.
func (s *Session) AddTag(ctx context.Context, tag string) error {
	basename, err := s.selectedBasename()
	if err != nil {
		return err
	}
	return s.tags.AddTag(ctx, basename, tag)
}

// RemoveTag untags the selected asset.
func (s *Session) RemoveTag(ctx context.Context, tag string) error {
	basename, err := s.selectedBasename()
	if err != nil {
		return err
	}
	return s.tags.RemoveTag(ctx, basename, tag)
}

// AutoTag asks the backend to tag the selected asset, then reloads its tags
// and the index.
func (s *Session) AutoTag(ctx context.Context) (json.RawMessage, error) {
	basename, err := s.selectedBasename()
	if err != nil {
		return nil, err
	}
	raw, err := s.tags.AutoTag(ctx, basename)
	if err != nil {
		return nil, err
	}
	s.tags.Invalidate(basename)
	if _, err := s.tags.LoadTagsFor(ctx, basename); err != nil {
		s.log.Warn("reload tags after auto-tag failed", zap.String("basename", basename), zap.Error(err))
	}
	if err := s.tags.LoadIndex(ctx); err != nil {
		s.log.Warn("tag index unavailable", zap.Error(err))
	}
	return raw, nil
}

// UpdateSetting changes one preference. The current tab is routed through
// SwitchCategory so the listing follows it.
func (s *Session) UpdateSetting(ctx context.Context, key, value string) error {
	if key == settings.CurrentTab {
		return s.SwitchCategory(ctx, asset.Category(value))
	}
	if _, err := s.settings.Set(key, value); err != nil {
		return err
	}
	s.emit(Event{Type: EventSettingsChanged})
	return nil
}

// Settings returns the live preferences.
func (s *Session) Settings() settings.Settings {
	return s.settings.Current()
}

// SelectedTags returns the mirrored tags of the selected asset.
func (s *Session) SelectedTags() (tags.Set, bool) {
	basename, err := s.selectedBasename()
	if err != nil {
		return tags.Set{}, false
	}
	return s.tags.Tags(basename)
}

// Selected returns the selected asset, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Linked returns the linked consumer, or nil.
func (s *Session) Linked() Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumer
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Mode:        ModeClosed,
		Category:    s.category,
		StoragePath: s.catalog.StoragePath(),
		Selected:    s.selected,
		Filters:     append([]string(nil), s.filters...),
		Query:       s.query,
		Assets:      len(s.listingLocked()),
	}
	if s.consumer != nil {
		st.Consumer = s.consumer.ID()
	}
	if s.open {
		st.Mode = ModeUnlinked
		if s.consumer != nil {
			st.Mode = ModeLinked
		}
	}
	return st
}

func (s *Session) selectedBasename() (string, error) {
	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected == "" {
		return "", ErrNoSelection
	}
	return s.catalog.Resolve(selected), nil
}

func (s *Session) persistTab(c asset.Category) {
	if _, err := s.settings.Set(settings.CurrentTab, c.String()); err != nil {
		s.log.Warn("persist current tab failed", zap.Error(err))
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.eventCh <- ev:
	default:
		s.log.Debug("dropping session event", zap.String("event", ev.Describe()))
	}
}

func indexFold(list []string, v string) int {
	for i, item := range list {
		if strings.EqualFold(item, v) {
			return i
		}
	}
	return -1
}
