package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// frame is the envelope the backend pushes on its websocket.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WebSocketSource reads push notifications from the backend websocket and
// reconnects with exponential backoff when the connection drops.
type WebSocketSource struct {
	URL          string
	Dialer       *websocket.Dialer
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	log *zap.Logger
}

// NewWebSocketSource derives the websocket endpoint from the backend base
// URL. http becomes ws and https becomes wss.
func NewWebSocketSource(serverURL string, log *zap.Logger) (*WebSocketSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("bus: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("bus: unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("clientId", ulid.Make().String())
	u.RawQuery = q.Encode()

	return &WebSocketSource{
		URL:          u.String(),
		Dialer:       websocket.DefaultDialer,
		ReconnectMin: 500 * time.Millisecond,
		ReconnectMax: 30 * time.Second,
		log:          log.Named("ws"),
	}, nil
}

// Subscribe starts a reader that calls h for every frame whose type is in
// topics. It returns immediately; connection errors are retried until the
// subscription is released or ctx is done.
func (s *WebSocketSource) Subscribe(ctx context.Context, topics []string, h Handler) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		s.run(ctx, topicSet(topics), h)
	}()
	return sub, nil
}

func (s *WebSocketSource) run(ctx context.Context, topics map[string]struct{}, h Handler) {
	backoff := s.ReconnectMin
	for {
		conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Debug("websocket dial failed", zap.String("url", s.URL), zap.Duration("retry", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, s.ReconnectMax)
			continue
		}
		backoff = s.ReconnectMin
		s.log.Debug("websocket connected", zap.String("url", s.URL))

		err = s.read(ctx, conn, topics, h)
		if ctx.Err() != nil {
			return
		}
		s.log.Info("websocket disconnected", zap.Error(err))
	}
}

func (s *WebSocketSource) read(ctx context.Context, conn *websocket.Conn, topics map[string]struct{}, h Handler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Debug("ignoring malformed frame", zap.Error(err))
			continue
		}
		if _, ok := topics[f.Type]; !ok {
			continue
		}
		h(Message{Topic: f.Type, Data: f.Data})
	}
}

type wsSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *wsSubscription) Unsubscribe() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
