package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestMessageBasename(t *testing.T) {
	assert.Equal(t, "forest_01", Message{Data: json.RawMessage(`{"basename":"forest_01"}`)}.Basename())
	assert.Equal(t, "", Message{Data: json.RawMessage(`not json`)}.Basename())
	assert.Equal(t, "", Message{}.Basename())
}

func TestMemoryBusDeliversSubscribedTopics(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()
	ctx := context.Background()

	got := make(chan Message, 4)
	sub, err := b.Subscribe(ctx, []string{TopicMapSaved, TopicTagsUpdated}, func(m Message) {
		got <- m
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish(ctx, TopicAssetDeleted, nil))
	require.NoError(t, b.Publish(ctx, TopicMapSaved, json.RawMessage(`{"basename":"forest_01"}`)))

	msg := receive(t, got)
	assert.Equal(t, TopicMapSaved, msg.Topic)
	assert.Equal(t, "forest_01", msg.Basename())
	assert.Empty(t, got)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	got := make(chan Message, 1)
	sub, err := b.Subscribe(ctx, Topics(), func(m Message) { got <- m })
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, b.Publish(ctx, TopicMapSaved, nil))
	assert.Empty(t, got)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(ctx, TopicMapSaved, nil), ErrClosed)
	_, err = b.Subscribe(ctx, Topics(), func(Message) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWebSocketSourceURL(t *testing.T) {
	src, err := NewWebSocketSource("https://example.com/api/", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src.URL, "wss://example.com/api/ws?clientId="), src.URL)

	_, err = NewWebSocketSource("ftp://example.com", nil)
	assert.Error(t, err)
}

func TestWebSocketSourceFiltersFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"type":"status","data":{}}`,
			`garbage`,
			`{"type":"eros.asset.deleted","data":{"basename":"forest_01"}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	src, err := NewWebSocketSource(srv.URL, nil)
	require.NoError(t, err)

	got := make(chan Message, 4)
	sub, err := src.Subscribe(context.Background(), Topics(), func(m Message) { got <- m })
	require.NoError(t, err)

	msg := receive(t, got)
	assert.Equal(t, TopicAssetDeleted, msg.Topic)
	assert.Equal(t, "forest_01", msg.Basename())

	require.NoError(t, sub.Unsubscribe())
}
