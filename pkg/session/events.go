package session

import (
	"fmt"
	"strings"
)

// EventType enumerates session notifications.
type EventType string

const (
	EventOpened           EventType = "opened"
	EventClosed           EventType = "closed"
	EventLinked           EventType = "linked"
	EventCategoryChanged  EventType = "category-changed"
	EventListingLoaded    EventType = "listing-loaded"
	EventListingStale     EventType = "listing-stale"
	EventSelectionChanged EventType = "selection-changed"
	EventFiltersChanged   EventType = "filters-changed"
	EventAssetDeleted     EventType = "asset-deleted"
	EventSettingsChanged  EventType = "settings-changed"
)

// Event describes a change to session state.
type Event struct {
	Type     EventType
	Category string
	Selected string
	Consumer string
	Count    int
	Err      error
}

// Describe renders the event for logs and the watch command.
func (e Event) Describe() string {
	parts := []string{fmt.Sprintf("type:%q", e.Type)}
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("category:%q", e.Category))
	}
	if e.Selected != "" {
		parts = append(parts, fmt.Sprintf("selected:%q", e.Selected))
	}
	if e.Consumer != "" {
		parts = append(parts, fmt.Sprintf("consumer:%q", e.Consumer))
	}
	if e.Count > 0 {
		parts = append(parts, fmt.Sprintf("count:%d", e.Count))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err:%q", e.Err.Error()))
	}
	return strings.Join(parts, " ")
}
