package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSSource relays notifications published on NATS subjects named after
// the topics. Message data is the raw payload.
type NATSSource struct {
	conn *nats.Conn
	log  *zap.Logger
}

// ConnectNATS dials url and returns a source owning the connection.
func ConnectNATS(url string, log *zap.Logger) (*NATSSource, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name("cachemap"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: nats connect: %w", err)
	}
	return NewNATSSource(conn, log), nil
}

// NewNATSSource wraps an existing connection.
func NewNATSSource(conn *nats.Conn, log *zap.Logger) *NATSSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSSource{conn: conn, log: log.Named("nats")}
}

// Subscribe registers h on every topic subject. Handlers run on the
// connection's dispatch goroutine, one message at a time per subject.
func (s *NATSSource) Subscribe(ctx context.Context, topics []string, h Handler) (Subscription, error) {
	if s.conn == nil || s.conn.IsClosed() {
		return nil, ErrClosed
	}
	sub := &natsSubscription{}
	for _, topic := range topics {
		ns, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
			if ctx.Err() != nil {
				return
			}
			h(Message{Topic: msg.Subject, Data: msg.Data})
		})
		if err != nil {
			_ = sub.Unsubscribe()
			return nil, fmt.Errorf("bus: nats subscribe %s: %w", topic, err)
		}
		sub.subs = append(sub.subs, ns)
	}
	s.log.Debug("subscribed", zap.Strings("topics", topics))
	return sub, nil
}

// Close drains and closes the connection.
func (s *NATSSource) Close() error {
	if s.conn == nil || s.conn.IsClosed() {
		return ErrClosed
	}
	return s.conn.Drain()
}

type natsSubscription struct {
	mu   sync.Mutex
	subs []*nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, ns := range s.subs {
		if err := ns.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	s.subs = nil
	return errors.Join(errs...)
}
