package tags

import (
	"fmt"
	"strings"
)

// EventType enumerates notifications emitted by the Store.
type EventType string

const (
	// EventIndexLoaded follows a successful LoadIndex.
	EventIndexLoaded EventType = "tags-loaded"
	// EventTagsLoaded follows a fetch of one basename's tags.
	EventTagsLoaded EventType = "tags-for-loaded"
	// EventTagAdded is emitted as soon as an add is applied locally.
	EventTagAdded EventType = "tag-added"
	// EventTagRemoved is emitted as soon as a remove is applied locally.
	EventTagRemoved EventType = "tag-removed"
	// EventAssetDeleted follows a backend-confirmed deletion.
	EventAssetDeleted EventType = "map-deleted"
	// EventMutationConfirmed follows the backend acknowledging a write.
	EventMutationConfirmed EventType = "mutation-confirmed"
	// EventMutationRolledBack follows a write that exhausted its retries.
	EventMutationRolledBack EventType = "mutation-rolled-back"
)

// Event describes a change to the mirror.
type Event struct {
	Type     EventType
	Basename string
	Tag      string
	Deleted  []string
	Mutation *Mutation
	Err      error
}

// Describe renders the event for logs and the watch command.
func (e Event) Describe() string {
	parts := []string{fmt.Sprintf("type:%q", e.Type)}
	if e.Basename != "" {
		parts = append(parts, fmt.Sprintf("basename:%q", e.Basename))
	}
	if e.Tag != "" {
		parts = append(parts, fmt.Sprintf("tag:%q", e.Tag))
	}
	if len(e.Deleted) > 0 {
		parts = append(parts, fmt.Sprintf("deleted:%q", e.Deleted))
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err:%q", e.Err.Error()))
	}
	return strings.Join(parts, " ")
}
