// Package tags mirrors the backend tag store: the global tag index and the
// per-basename tag sets, with optimistic writes that are retried and rolled
// back when the backend never confirms them.
package tags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tableflip.dev/cachemap/pkg/metrics"
	"tableflip.dev/cachemap/pkg/remote"
)

var (
	// ErrEmptyTag is returned when a tag is blank after trimming.
	ErrEmptyTag = errors.New("tags: tag is empty")
	// ErrNoBasename is returned when an operation has no asset to act on.
	ErrNoBasename = errors.New("tags: basename is empty")
)

// DeleteError is a deletion the backend refused.
type DeleteError struct {
	Basename string
	Reason   string
}

func (e *DeleteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("tags: delete %q failed", e.Basename)
	}
	return fmt.Sprintf("tags: delete %q failed: %s", e.Basename, e.Reason)
}

// Backend is the subset of the remote client the store depends on.
type Backend interface {
	ListTags(ctx context.Context) ([]remote.TagCount, error)
	TagsFor(ctx context.Context, basename string) ([]string, error)
	AddTag(ctx context.Context, basename, tag string) error
	RemoveTag(ctx context.Context, basename, tag string) error
	AutoTag(ctx context.Context, basename string) (json.RawMessage, error)
	DeleteMap(ctx context.Context, req remote.DeleteRequest) (remote.DeleteResult, error)
}

// Options configures a Store.
type Options struct {
	Logger *zap.Logger
	// MaxAttempts bounds backend calls per write. Defaults to 3.
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between retries.
	// Defaults to 100ms.
	RetryBackoff time.Duration
	// TTL expires loaded entries. Zero keeps them until invalidated.
	TTL time.Duration
	// DisableRollback leaves failed optimistic writes applied locally.
	DisableRollback bool
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 100 * time.Millisecond
	eventBuffer         = 64
)

type entry struct {
	set      Set
	loaded   bool
	loadedAt time.Time
	pending  int
}

type confirmation struct {
	at uint64
	m  *Mutation
}

// Store is the in-memory tag mirror. It is safe for concurrent use.
type Store struct {
	backend Backend
	log     *zap.Logger
	opts    Options

	mu      sync.RWMutex
	index   Index
	entries map[string]*entry
	pending []*Mutation
	latest  map[string]string

	// seq orders writes and confirmations. confirmed holds the writes
	// confirmed while any fetch is in flight, stamped with seq.
	seq       uint64
	loading   int
	confirmed []confirmation

	group   singleflight.Group
	eventCh chan Event

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a Store backed by backend.
func New(backend Backend, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Store{
		backend: backend,
		log:     opts.Logger.Named("tags"),
		opts:    opts,
		index:   Index{},
		entries: map[string]*entry{},
		latest:  map[string]string{},
		eventCh: make(chan Event, eventBuffer),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Events returns a channel of store notifications. Events are dropped when
// nobody drains the channel.
func (s *Store) Events() <-chan Event {
	return s.eventCh
}

// LoadIndex replaces the tag index with the backend's. On failure the
// previous index is kept.
func (s *Store) LoadIndex(ctx context.Context) error {
	counts, err := s.backend.ListTags(ctx)
	if err != nil {
		s.log.Warn("load tag index failed", zap.Error(err))
		return fmt.Errorf("tags: load index: %w", err)
	}
	idx := make(Index, len(counts))
	for _, tc := range counts {
		idx[tc.Name] = tc.Count
	}
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	s.log.Debug("tag index loaded", zap.Int("tags", len(idx)))
	s.emit(Event{Type: EventIndexLoaded})
	return nil
}

// LoadTagsFor returns the tags of basename, fetching them unless a fresh
// entry is already mirrored. Pending writes are replayed over a fetched set.
func (s *Store) LoadTagsFor(ctx context.Context, basename string) (Set, error) {
	basename = strings.TrimSpace(basename)
	if basename == "" {
		return Set{}, ErrNoBasename
	}

	s.mu.RLock()
	e := s.entries[basename]
	if e != nil && s.freshLocked(e) {
		set := e.set.clone()
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do(basename, func() (any, error) {
		return s.fetch(ctx, basename)
	})
	if err != nil {
		s.log.Warn("load tags failed", zap.String("basename", basename), zap.Error(err))
		set, _ := s.Tags(basename)
		return set, fmt.Errorf("tags: load %q: %w", basename, err)
	}
	set, _ := v.(Set)

	s.emit(Event{Type: EventTagsLoaded, Basename: basename})
	return set.clone(), nil
}

// fetch reads basename from the backend and installs the result. Writes
// still pending, and writes confirmed while the read was in flight, are
// replayed over it in the order they were made.
func (s *Store) fetch(ctx context.Context, basename string) (Set, error) {
	s.mu.Lock()
	s.loading++
	since := s.seq
	s.mu.Unlock()

	fetched, err := s.backend.TagsFor(ctx, basename)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.doneLoadingLocked()
	if err != nil {
		return Set{}, err
	}

	var replay []*Mutation
	for _, m := range s.pending {
		if m.Basename == basename {
			replay = append(replay, m)
		}
	}
	for _, c := range s.confirmed {
		if c.at > since && c.m.Basename == basename {
			replay = append(replay, c.m)
		}
	}
	sort.Slice(replay, func(i, j int) bool { return replay[i].seq < replay[j].seq })

	set := NewSet(fetched...)
	for _, m := range replay {
		m.apply(&set)
	}
	e := s.entryLocked(basename)
	e.set = set
	e.loaded = true
	e.loadedAt = s.now()
	return set.clone(), nil
}

func (s *Store) doneLoadingLocked() {
	s.loading--
	if s.loading == 0 {
		s.confirmed = nil
	}
}

func (s *Store) freshLocked(e *entry) bool {
	if !e.loaded {
		return false
	}
	if e.pending > 0 || s.opts.TTL <= 0 {
		return true
	}
	return s.now().Sub(e.loadedAt) < s.opts.TTL
}

// Tags returns the mirrored tags of basename without fetching. The boolean
// is false when nothing is mirrored for it.
func (s *Store) Tags(basename string) (Set, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[basename]
	if !ok {
		return Set{}, false
	}
	return e.set.clone(), true
}

// Index returns a snapshot of the tag index.
func (s *Store) Index() Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.clone()
}

// Pending returns copies of the writes awaiting confirmation, oldest first.
func (s *Store) Pending() []Mutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Mutation, 0, len(s.pending))
	for _, m := range s.pending {
		out = append(out, *m)
	}
	return out
}

// Invalidate marks basename stale so the next LoadTagsFor refetches. The
// mirrored tags stay readable until then.
func (s *Store) Invalidate(basename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[basename]; ok {
		e.loaded = false
	}
}

// InvalidateAll marks every entry stale.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.loaded = false
	}
}

// AddTag applies tag to basename locally, then writes it to the backend.
// Adding a tag already present (ignoring case) does nothing.
func (s *Store) AddTag(ctx context.Context, basename, tag string) error {
	basename, tag, err := normalize(basename, tag)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e := s.entryLocked(basename)
	if !e.set.Add(tag) {
		s.mu.Unlock()
		return nil
	}
	m := s.trackLocked(OpAdd, basename, tag)
	s.mu.Unlock()

	s.emit(Event{Type: EventTagAdded, Basename: basename, Tag: tag})
	return s.commit(ctx, m)
}

// RemoveTag drops tag from basename locally, then writes the removal to the
// backend. Removing an absent tag does nothing.
func (s *Store) RemoveTag(ctx context.Context, basename, tag string) error {
	basename, tag, err := normalize(basename, tag)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e := s.entryLocked(basename)
	removed, ok := e.set.Remove(tag)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	m := s.trackLocked(OpRemove, basename, removed)
	s.mu.Unlock()

	s.emit(Event{Type: EventTagRemoved, Basename: basename, Tag: removed})
	return s.commit(ctx, m)
}

// AutoTag asks the backend to generate tags for basename. Local state is
// untouched; callers reload afterwards.
func (s *Store) AutoTag(ctx context.Context, basename string) (json.RawMessage, error) {
	basename = strings.TrimSpace(basename)
	if basename == "" {
		return nil, ErrNoBasename
	}
	raw, err := s.backend.AutoTag(ctx, basename)
	if err != nil {
		s.log.Warn("auto-tag failed", zap.String("basename", basename), zap.Error(err))
		return nil, fmt.Errorf("tags: auto-tag %q: %w", basename, err)
	}
	return raw, nil
}

// DeleteAsset deletes a map on the backend and, once the backend reports
// success, purges its tags from the mirror.
func (s *Store) DeleteAsset(ctx context.Context, req remote.DeleteRequest) (remote.DeleteResult, error) {
	req.Basename = strings.TrimSpace(req.Basename)
	if req.Basename == "" {
		return remote.DeleteResult{}, ErrNoBasename
	}
	res, err := s.backend.DeleteMap(ctx, req)
	if err != nil {
		s.log.Warn("delete failed", zap.String("basename", req.Basename), zap.Error(err))
		return res, fmt.Errorf("tags: delete %q: %w", req.Basename, err)
	}
	if !res.Success {
		return res, &DeleteError{Basename: req.Basename, Reason: res.Error}
	}

	s.mu.Lock()
	delete(s.entries, req.Basename)
	s.mu.Unlock()

	s.log.Info("asset deleted", zap.String("basename", req.Basename), zap.Strings("deleted", res.Deleted))
	s.emit(Event{Type: EventAssetDeleted, Basename: req.Basename, Deleted: append([]string(nil), res.Deleted...)})
	return res, nil
}

func (s *Store) entryLocked(basename string) *entry {
	e, ok := s.entries[basename]
	if !ok {
		e = &entry{}
		s.entries[basename] = e
	}
	return e
}

func (s *Store) trackLocked(op Op, basename, tag string) *Mutation {
	m := &Mutation{
		ID:       ulid.Make().String(),
		Op:       op,
		Basename: basename,
		Tag:      tag,
		State:    StatePending,
		Created:  s.now(),
	}
	s.seq++
	m.seq = s.seq
	s.pending = append(s.pending, m)
	s.latest[m.key()] = m.ID
	if e, ok := s.entries[basename]; ok {
		e.pending++
	}
	metrics.PendingMutations.Inc()
	return m
}

// commit sends m to the backend with retries. When every attempt fails the
// local change is undone unless a newer write to the same tag superseded it.
func (s *Store) commit(ctx context.Context, m *Mutation) error {
	var err error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		s.mu.Lock()
		m.Attempts = attempt
		s.mu.Unlock()

		err = s.send(ctx, m)
		if err == nil {
			s.settle(m, StateConfirmed)
			metrics.Mutations.WithLabelValues(string(m.Op), "confirmed").Inc()
			s.emit(Event{Type: EventMutationConfirmed, Basename: m.Basename, Tag: m.Tag, Mutation: m.snapshot(&s.mu)})
			return nil
		}
		s.log.Debug("tag write failed",
			zap.String("id", m.ID),
			zap.String("op", string(m.Op)),
			zap.String("basename", m.Basename),
			zap.String("tag", m.Tag),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == s.opts.MaxAttempts {
			break
		}
		if serr := s.sleep(ctx, time.Duration(attempt)*s.opts.RetryBackoff); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}

	s.rollback(m)
	metrics.Mutations.WithLabelValues(string(m.Op), "rolled-back").Inc()
	s.log.Warn("tag write rolled back",
		zap.String("op", string(m.Op)),
		zap.String("basename", m.Basename),
		zap.String("tag", m.Tag),
		zap.Error(err))
	s.emit(Event{Type: EventMutationRolledBack, Basename: m.Basename, Tag: m.Tag, Mutation: m.snapshot(&s.mu), Err: err})
	return fmt.Errorf("tags: %s %q on %q: %w", m.Op, m.Tag, m.Basename, err)
}

func (s *Store) send(ctx context.Context, m *Mutation) error {
	switch m.Op {
	case OpAdd:
		return s.backend.AddTag(ctx, m.Basename, m.Tag)
	case OpRemove:
		return s.backend.RemoveTag(ctx, m.Basename, m.Tag)
	}
	return fmt.Errorf("tags: unknown op %q", m.Op)
}

func (s *Store) rollback(m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.DisableRollback && s.latest[m.key()] == m.ID {
		if e, ok := s.entries[m.Basename]; ok {
			switch m.Op {
			case OpAdd:
				e.set.Remove(m.Tag)
			case OpRemove:
				e.set.Add(m.Tag)
			}
		}
	}
	s.settleLocked(m, StateRolledBack)
}

func (s *Store) settle(m *Mutation, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(m, state)
}

func (s *Store) settleLocked(m *Mutation, state State) {
	m.State = state
	if state == StateConfirmed && s.loading > 0 {
		s.seq++
		s.confirmed = append(s.confirmed, confirmation{at: s.seq, m: m})
	}
	for i, p := range s.pending {
		if p == m {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			break
		}
	}
	if s.latest[m.key()] == m.ID {
		delete(s.latest, m.key())
	}
	if e, ok := s.entries[m.Basename]; ok && e.pending > 0 {
		e.pending--
	}
	metrics.PendingMutations.Dec()
}

func (m *Mutation) snapshot(mu *sync.RWMutex) *Mutation {
	mu.RLock()
	defer mu.RUnlock()
	cp := *m
	return &cp
}

func (s *Store) emit(ev Event) {
	select {
	case s.eventCh <- ev:
	default:
		s.log.Debug("dropping tag event", zap.String("event", ev.Describe()))
	}
}

func normalize(basename, tag string) (string, string, error) {
	basename = strings.TrimSpace(basename)
	if basename == "" {
		return "", "", ErrNoBasename
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", "", ErrEmptyTag
	}
	return basename, tag, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
