package tags

import (
	"strings"
	"time"
)

// Op is the kind of tag write.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// State tracks a Mutation through confirmation.
type State string

const (
	StatePending    State = "pending"
	StateConfirmed  State = "confirmed"
	StateRolledBack State = "rolled-back"
)

// Mutation is an optimistic tag write. It is applied to the mirror before
// the backend call and stays pending until the backend acknowledges it.
type Mutation struct {
	ID       string
	Op       Op
	Basename string
	Tag      string
	Attempts int
	State    State
	Created  time.Time

	seq uint64
}

func (m *Mutation) key() string {
	return mutationKey(m.Basename, m.Tag)
}

func mutationKey(basename, tag string) string {
	return basename + "\x00" + strings.ToLower(strings.TrimSpace(tag))
}

// apply replays m over s.
func (m *Mutation) apply(s *Set) {
	switch m.Op {
	case OpAdd:
		s.Add(m.Tag)
	case OpRemove:
		s.Remove(m.Tag)
	}
}
