package tags

import (
	"sort"
	"strings"

	"tableflip.dev/cachemap/pkg/remote"
)

// Set is the tag list of one basename. Casing is preserved, uniqueness is
// case-insensitive and the first casing seen wins.
type Set struct {
	tags []string
}

// NewSet builds a Set from tags, dropping blanks and case-insensitive
// duplicates.
func NewSet(tags ...string) Set {
	s := Set{}
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Has reports whether tag is present, ignoring case.
func (s Set) Has(tag string) bool {
	return s.index(tag) >= 0
}

// Add inserts tag unless an equal tag (ignoring case) exists. It reports
// whether the set changed.
func (s *Set) Add(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.Has(tag) {
		return false
	}
	s.tags = append(s.tags, tag)
	return true
}

// Remove drops tag (ignoring case) and returns the casing that was stored.
func (s *Set) Remove(tag string) (string, bool) {
	idx := s.index(tag)
	if idx < 0 {
		return "", false
	}
	removed := s.tags[idx]
	s.tags = append(s.tags[:idx:idx], s.tags[idx+1:]...)
	return removed, true
}

// List returns a copy of the tags in insertion order.
func (s Set) List() []string {
	if len(s.tags) == 0 {
		return nil
	}
	return append([]string(nil), s.tags...)
}

// Len returns the number of tags.
func (s Set) Len() int {
	return len(s.tags)
}

// Contains reports whether any tag contains sub, ignoring case. sub must
// already be lower-cased.
func (s Set) Contains(sub string) bool {
	for _, t := range s.tags {
		if strings.Contains(strings.ToLower(t), sub) {
			return true
		}
	}
	return false
}

func (s Set) clone() Set {
	return Set{tags: s.List()}
}

func (s Set) index(tag string) int {
	tag = strings.TrimSpace(tag)
	for i, t := range s.tags {
		if strings.EqualFold(t, tag) {
			return i
		}
	}
	return -1
}

// Index maps tag name to occurrence count across the whole store.
type Index map[string]int

// Sorted returns the index entries ordered by name.
func (idx Index) Sorted() []remote.TagCount {
	out := make([]remote.TagCount, 0, len(idx))
	for name, count := range idx {
		out = append(out, remote.TagCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (idx Index) clone() Index {
	out := make(Index, len(idx))
	for k, v := range idx {
		out[k] = v
	}
	return out
}
