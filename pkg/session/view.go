package session

import (
	"strings"

	"tableflip.dev/cachemap/pkg/tags"
)

// View returns the listing narrowed by the active filters and the search
// query. Every filter tag must be present; an asset whose tags are not
// loaded is excluded while any filter is active. The query matches the
// basename or any tag, ignoring case.
func (s *Session) View() []string {
	s.mu.Lock()
	listing := s.listingLocked()
	filters := append([]string(nil), s.filters...)
	query := strings.ToLower(strings.TrimSpace(s.query))
	s.mu.Unlock()

	if len(filters) == 0 && query == "" {
		return listing
	}
	out := make([]string, 0, len(listing))
	for _, f := range listing {
		basename := s.catalog.Resolve(f)
		set, loaded := s.tags.Tags(basename)
		if matches(basename, set, loaded, filters, query) {
			out = append(out, f)
		}
	}
	return out
}

func matches(basename string, set tags.Set, loaded bool, filters []string, query string) bool {
	if len(filters) > 0 {
		if !loaded {
			return false
		}
		for _, f := range filters {
			if !set.Has(f) {
				return false
			}
		}
	}
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(basename), query) {
		return true
	}
	return loaded && set.Contains(query)
}

// Listing returns the unfiltered listing of the current category. It is
// empty until a listing for that category has loaded.
func (s *Session) Listing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingLocked()
}
