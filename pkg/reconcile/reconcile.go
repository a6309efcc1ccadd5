// Package reconcile keeps the session mirror in step with backend push
// notifications.
package reconcile

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tableflip.dev/cachemap/pkg/bus"
	"tableflip.dev/cachemap/pkg/metrics"
)

// DefaultRetryDelay is how long after a save notification the deferred
// refresh runs, giving the backend time to make the file visible.
const DefaultRetryDelay = 350 * time.Millisecond

var (
	// ErrStarted is returned by Start on a running reconciler.
	ErrStarted = errors.New("reconcile: already started")
	// ErrNoSource is returned when the reconciler has nothing to subscribe to.
	ErrNoSource = errors.New("reconcile: no source")
)

// Trigger describes why a refresh runs.
type Trigger struct {
	Topic    string
	Basename string
	Deferred bool
}

// Refresher performs the refresh.
type Refresher interface {
	Reconcile(ctx context.Context, t Trigger) error
}

// Invalidator drops a cached tag entry.
type Invalidator interface {
	Invalidate(basename string)
}

// Options configures a Reconciler.
type Options struct {
	Source     bus.Source
	Refresher  Refresher
	Tags       Invalidator
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Reconciler subscribes to every push topic while started.
type Reconciler struct {
	source    bus.Source
	refresher Refresher
	tags      Invalidator
	delay     time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	sub     bus.Subscription
	timers  map[string]*time.Timer
	running sync.WaitGroup
}

// New creates a stopped Reconciler.
func New(opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Reconciler{
		source:    opts.Source,
		refresher: opts.Refresher,
		tags:      opts.Tags,
		delay:     opts.RetryDelay,
		log:       opts.Logger.Named("reconcile"),
		timers:    map[string]*time.Timer{},
	}
}

// Start subscribes to the push topics. Every successful Start must be paired
// with Stop.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.source == nil {
		return ErrNoSource
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return ErrStarted
	}
	rctx, cancel := context.WithCancel(ctx)
	sub, err := r.source.Subscribe(rctx, bus.Topics(), r.handle)
	if err != nil {
		cancel()
		return err
	}
	r.ctx, r.cancel, r.sub = rctx, cancel, sub
	r.log.Debug("reconciler started")
	return nil
}

// Stop releases the subscription, cancels deferred refreshes and waits for
// any refresh already running. Stopping a stopped reconciler is a no-op.
func (r *Reconciler) Stop() error {
	r.mu.Lock()
	sub := r.sub
	if sub == nil {
		r.mu.Unlock()
		return nil
	}
	for topic, t := range r.timers {
		t.Stop()
		delete(r.timers, topic)
	}
	r.cancel()
	r.sub, r.cancel = nil, nil
	r.mu.Unlock()

	err := sub.Unsubscribe()
	r.running.Wait()
	r.log.Debug("reconciler stopped")
	return err
}

func (r *Reconciler) handle(msg bus.Message) {
	trigger := Trigger{Topic: msg.Topic, Basename: msg.Basename()}

	if trigger.Basename != "" && r.tags != nil {
		switch msg.Topic {
		case bus.TopicTagsUpdated, bus.TopicAssetDeleted:
			r.tags.Invalidate(trigger.Basename)
		}
	}

	r.mu.Lock()
	if r.sub == nil {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.running.Add(1)
	r.mu.Unlock()

	r.run(ctx, trigger)
	r.running.Done()

	switch msg.Topic {
	case bus.TopicMapSaved, bus.TopicAssetSaved:
		r.schedule(trigger)
	}
}

// schedule arms the deferred refresh for trigger.Topic, pushing back one that
// is already armed instead of adding a second.
func (r *Reconciler) schedule(trigger Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return
	}
	if t, ok := r.timers[trigger.Topic]; ok && t.Stop() {
		t.Reset(r.delay)
		return
	}

	trigger.Deferred = true
	var t *time.Timer
	t = time.AfterFunc(r.delay, func() {
		r.mu.Lock()
		if r.timers[trigger.Topic] != t || r.sub == nil {
			r.mu.Unlock()
			return
		}
		delete(r.timers, trigger.Topic)
		ctx := r.ctx
		r.running.Add(1)
		r.mu.Unlock()

		defer r.running.Done()
		r.run(ctx, trigger)
	})
	r.timers[trigger.Topic] = t
}

func (r *Reconciler) run(ctx context.Context, trigger Trigger) {
	if ctx.Err() != nil {
		return
	}
	metrics.Reconciles.WithLabelValues(trigger.Topic, strconv.FormatBool(trigger.Deferred)).Inc()
	if err := r.refresher.Reconcile(ctx, trigger); err != nil {
		r.log.Warn("reconcile failed",
			zap.String("topic", trigger.Topic),
			zap.Bool("deferred", trigger.Deferred),
			zap.Error(err))
	}
}
