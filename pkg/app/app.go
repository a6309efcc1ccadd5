// Package app assembles the cachemap services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/bus"
	"tableflip.dev/cachemap/pkg/catalog"
	"tableflip.dev/cachemap/pkg/config"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/reconcile"
	"tableflip.dev/cachemap/pkg/remote"
	"tableflip.dev/cachemap/pkg/session"
	"tableflip.dev/cachemap/pkg/settings"
	"tableflip.dev/cachemap/pkg/tags"
)

var (
	// ErrNoBus is returned by Reconciler when the bus is disabled.
	ErrNoBus = errors.New("app: bus disabled")
	// ErrNotFound is returned by Select for an asset outside the listing.
	ErrNotFound = errors.New("app: asset not found")
)

// Service holds the wired components shared by every command.
type Service struct {
	Config   *config.Config
	Log      *zap.Logger
	Client   *remote.Client
	Catalog  *catalog.Catalog
	Tags     *tags.Store
	Settings *settings.Committer
	Session  *session.Session
	Source   bus.Source

	closers []func() error
}

// Options override parts of the wiring.
type Options struct {
	Prompter session.Prompter
	// Store replaces the on-disk settings store.
	Store settings.Store
	// Source replaces the configured bus.
	Source bus.Source
}

// New builds a Service. Nothing is contacted until a command uses it.
func New(cfg *config.Config, log *zap.Logger, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("app: no configuration")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var copts []remote.Option
	if cfg.RateLimit > 0 {
		copts = append(copts, remote.WithRateLimit(cfg.RateLimit, int(cfg.RateLimit)+1))
	}
	client := remote.NewClient(cfg.Server, copts...)

	s := &Service{
		Config: cfg,
		Log:    log,
		Client: client,
	}

	s.Catalog = catalog.New(client, log)
	s.Catalog.SetStoragePath(cfg.StoragePath)

	s.Tags = tags.New(client, tags.Options{
		Logger: log,
		TTL:    cfg.TagTTL,
	})

	store := opts.Store
	if store == nil {
		store = settings.NewDiskStore(cfg.SettingsDir)
	}
	s.Settings = settings.NewCommitter(store, cfg.Debounce, log)
	s.closers = append(s.closers, s.Settings.Close)

	s.Session = session.New(session.Options{
		Catalog:  s.Catalog,
		Tags:     s.Tags,
		Settings: s.Settings,
		Previews: client,
		Prompter: opts.Prompter,
		Logger:   log,
	})
	s.closers = append(s.closers, func() error {
		s.Session.Close()
		return nil
	})

	source := opts.Source
	if source == nil {
		var err error
		if source, err = s.dialBus(); err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}
	s.Source = source
	return s, nil
}

func (s *Service) dialBus() (bus.Source, error) {
	switch s.Config.Bus {
	case config.BusNone:
		return nil, nil
	case config.BusNATS:
		src, err := bus.ConnectNATS(s.Config.NATSURL, s.Log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, src.Close)
		return src, nil
	default:
		return bus.NewWebSocketSource(s.Config.Server, s.Log)
	}
}

// Reconciler returns a reconciler driving the session from the bus.
func (s *Service) Reconciler() (*reconcile.Reconciler, error) {
	if s.Source == nil {
		return nil, ErrNoBus
	}
	return reconcile.New(reconcile.Options{
		Source:     s.Source,
		Refresher:  s.Session,
		Tags:       s.Tags,
		RetryDelay: s.Config.RetryDelay,
		Logger:     s.Log,
	}), nil
}

// Browse opens the session without a consumer, on category when it is set.
func (s *Service) Browse(ctx context.Context, category asset.Category) error {
	if category != "" {
		// The session is still closed, so this only moves the tab.
		if err := s.Session.SwitchCategory(ctx, category); err != nil && !errors.Is(err, session.ErrClosed) {
			return err
		}
	}
	return s.Session.Open(ctx, nil)
}

// Close flushes settings and releases the bus, last wired first.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Rows pairs files with their mirrored tags, marking the session selection.
func (s *Service) Rows(files []string) []printers.AssetRow {
	selected := s.Session.Selected()
	rows := make([]printers.AssetRow, 0, len(files))
	for _, f := range files {
		row := printers.AssetRow{Asset: f, Selected: selected != "" && f == selected}
		if set, ok := s.Tags.Tags(s.Catalog.Resolve(f)); ok {
			row.Tags = set.List()
		}
		rows = append(rows, row)
	}
	return rows
}

// Select browses category and selects id, which must be listed.
func (s *Service) Select(ctx context.Context, category asset.Category, id string) error {
	if err := s.Browse(ctx, category); err != nil {
		return err
	}
	want := s.Catalog.Resolve(id)
	for _, f := range s.Session.Listing() {
		if f == id || s.Catalog.Resolve(f) == want {
			return s.Session.SelectAsset(ctx, f)
		}
	}
	return fmt.Errorf("%w: %q in %s", ErrNotFound, id, s.Session.State().Category)
}
