package watch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/consumer"
	"tableflip.dev/cachemap/pkg/metrics"
	"tableflip.dev/cachemap/pkg/printers"
)

// Watch keeps a session open until ctx is done. It links the node file when
// one is given, follows backend pushes and prints every event.
type Watch struct {
	Service  *app.Service
	Printer  *printers.Printer
	Category asset.Category
	// Node is the path of a consumer node file.
	Node string
	// MetricsAddr serves /metrics when set.
	MetricsAddr string

	now func() time.Time
}

func (w *Watch) Do(ctx context.Context) error {
	if w.now == nil {
		w.now = time.Now
	}
	log := w.Service.Log.Named("watch")

	var node *consumer.FileNode
	if w.Node != "" {
		var err error
		if node, err = consumer.OpenFile(w.Node, log); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	fail := func(err error) error {
		cancel()
		return errors.Join(err, g.Wait())
	}
	g.Go(func() error {
		w.printEvents(ctx)
		return nil
	})

	if node != nil {
		if err := w.Service.Session.Open(ctx, node); err != nil {
			return fail(err)
		}
	} else if err := w.Service.Browse(ctx, w.Category); err != nil {
		return fail(err)
	}

	rec, err := w.Service.Reconciler()
	switch {
	case errors.Is(err, app.ErrNoBus):
		log.Info("bus disabled, backend pushes are ignored")
	case err != nil:
		return fail(err)
	default:
		if err := rec.Start(ctx); err != nil {
			return fail(err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return rec.Stop()
		})
	}

	if node != nil {
		changes, err := node.Watch(ctx)
		if err != nil {
			return fail(err)
		}
		g.Go(func() error {
			w.follow(ctx, node, changes)
			return nil
		})
	}

	if w.MetricsAddr != "" {
		srv := &http.Server{Addr: w.MetricsAddr, Handler: mux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", w.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdown)
		})
	}

	<-ctx.Done()
	w.Service.Session.Close()
	return g.Wait()
}

func mux() http.Handler {
	m := http.NewServeMux()
	m.Handle("/metrics", metrics.Handler())
	return m
}

// follow relinks node after an outside edit so the session picks up the new
// cache path and selection.
func (w *Watch) follow(ctx context.Context, node *consumer.FileNode, changes <-chan consumer.Change) {
	for ch := range changes {
		w.Service.Log.Debug("node changed", zap.String("filename", ch.Filename), zap.String("cache_path", ch.CachePath))
		w.Service.Session.LinkConsumer(node)
		if err := w.Service.Session.Refresh(ctx); err != nil && ctx.Err() == nil {
			w.Service.Log.Warn("refresh after node change failed", zap.Error(err))
		}
	}
}

func (w *Watch) printEvents(ctx context.Context) {
	sessionEvents := w.Service.Session.Events()
	tagEvents := w.Service.Tags.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sessionEvents:
			w.Printer.Event(w.now(), "session", ev.Describe())
		case ev := <-tagEvents:
			w.Printer.Event(w.now(), "tags", ev.Describe())
		}
	}
}
