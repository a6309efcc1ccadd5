package settings

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before continuous changes are saved.
const DefaultDebounce = 30 * time.Millisecond

// Committer owns the live settings. Discrete changes are saved at once;
// continuous ones (opacity, columns, badge size) are coalesced until no
// change arrived for the debounce window.
type Committer struct {
	store Store
	log   *zap.Logger
	delay time.Duration

	mu       sync.Mutex
	cur      Settings
	pending  map[string]struct{}
	timer    *time.Timer
	onCommit func(Settings, []string)
}

// NewCommitter loads the settings from store.
func NewCommitter(store Store, delay time.Duration, log *zap.Logger) *Committer {
	if log == nil {
		log = zap.NewNop()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Committer{
		store:   store,
		log:     log.Named("settings"),
		delay:   delay,
		cur:     store.Load(),
		pending: map[string]struct{}{},
	}
}

// OnCommit registers fn to run after every save with the keys it covered.
func (c *Committer) OnCommit(fn func(Settings, []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCommit = fn
}

// Current returns the live settings, including unsaved changes.
func (c *Committer) Current() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Set changes one setting and returns the result.
func (c *Committer) Set(key, value string) (Settings, error) {
	c.mu.Lock()
	next, err := c.cur.Set(key, value)
	if err != nil {
		c.mu.Unlock()
		return c.Current(), err
	}
	c.cur = next
	c.pending[key] = struct{}{}

	if Continuous(key) {
		if c.timer == nil {
			c.timer = time.AfterFunc(c.delay, func() {
				if err := c.Flush(); err != nil {
					c.log.Warn("save settings failed", zap.Error(err))
				}
			})
		} else {
			c.timer.Reset(c.delay)
		}
		c.mu.Unlock()
		return next, nil
	}
	c.mu.Unlock()
	return next, c.Flush()
}

// Flush saves pending changes now.
func (c *Committer) Flush() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c.pending = map[string]struct{}{}
	cur := c.cur
	fn := c.onCommit
	c.mu.Unlock()

	if err := c.store.Save(cur); err != nil {
		return err
	}
	c.log.Debug("settings saved", zap.Strings("keys", keys))
	if fn != nil {
		fn(cur, keys)
	}
	return nil
}

// Close saves anything pending.
func (c *Committer) Close() error {
	return c.Flush()
}
