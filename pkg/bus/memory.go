package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// MemoryBus is an in-process Source. Publish fans out to matching
// subscriptions without blocking; a full subscriber buffer drops the message.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	closed atomic.Bool
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[*memorySubscription]struct{}{}}
}

// Publish delivers data on topic to every subscriber of topic.
func (b *MemoryBus) Publish(_ context.Context, topic string, data json.RawMessage) error {
	if b.closed.Load() {
		return ErrClosed
	}
	msg := Message{Topic: topic, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}
		select {
		case sub.messages <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers h for topics. Delivery stops when ctx is done or the
// subscription is released.
func (b *MemoryBus) Subscribe(ctx context.Context, topics []string, h Handler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		bus:      b,
		topics:   topicSet(topics),
		messages: make(chan Message, 256),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		handler:  h,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

// Close releases every subscription.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	b.mu.Lock()
	subs := make([]*memorySubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = map[*memorySubscription]struct{}{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

type memorySubscription struct {
	bus      *MemoryBus
	topics   map[string]struct{}
	messages chan Message
	handler  Handler

	once    sync.Once
	done    chan struct{}
	stopped chan struct{}
}

func (s *memorySubscription) run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.messages:
			s.handler(msg)
		}
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.stop()
	return nil
}
