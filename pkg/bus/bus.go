// Package bus delivers backend push notifications to the session engine.
// Every source speaks the same topic names; only the transport differs.
package bus

import (
	"context"
	"encoding/json"
	"errors"
)

// Topics pushed by the backend.
const (
	TopicTagsUpdated  = "eros.tags.updated"
	TopicAssetDeleted = "eros.asset.deleted"
	TopicMapSaved     = "eros.map.saved"
	TopicAssetSaved   = "eros.asset.saved"
)

// ErrClosed is returned when operating on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Topics returns every topic the reconciler listens to.
func Topics() []string {
	return []string{TopicTagsUpdated, TopicAssetDeleted, TopicMapSaved, TopicAssetSaved}
}

// Message is one notification. Data is the backend payload, possibly empty.
type Message struct {
	Topic string
	Data  json.RawMessage
}

// Basename extracts the optional "basename" field of the payload.
func (m Message) Basename() string {
	if len(m.Data) == 0 {
		return ""
	}
	var payload struct {
		Basename string `json:"basename"`
	}
	if err := json.Unmarshal(m.Data, &payload); err != nil {
		return ""
	}
	return payload.Basename
}

// Handler consumes messages. Handlers of one subscription are called
// sequentially.
type Handler func(Message)

// Subscription is an active registration.
type Subscription interface {
	Unsubscribe() error
}

// Source is a provider of push notifications.
type Source interface {
	Subscribe(ctx context.Context, topics []string, h Handler) (Subscription, error)
}

func topicSet(topics []string) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}
