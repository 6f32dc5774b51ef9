package filter

import (
	"sync"

	"github.com/rpattn/productadmin/internal/criteria"
)

type activeEntry struct {
	name   string
	filter criteria.Filter
}

// ActiveSet is the ordered set of active filter predicates, holding at most
// one predicate per filter name. Replacing a name keeps its position.
type ActiveSet struct {
	mu      sync.Mutex
	entries []activeEntry
}

// Set stores the predicates for name, replacing earlier ones. Several
// predicates are merged into one AND group. Setting no predicates resets name.
func (s *ActiveSet) Set(name string, filters []criteria.Filter) {
	if len(filters) == 0 {
		s.Reset(name)
		return
	}
	f := filters[0]
	if len(filters) > 1 {
		f = criteria.Multi(criteria.OperatorAnd, filters...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].name == name {
			s.entries[i].filter = f
			return
		}
	}
	s.entries = append(s.entries, activeEntry{name: name, filter: f})
}

// Reset removes name and reports whether it was active.
func (s *ActiveSet) Reset(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].name == name {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (s *ActiveSet) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Has reports whether name is active.
func (s *ActiveSet) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// Names lists active filter names in activation order.
func (s *ActiveSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Filters flattens the set into criteria filters in activation order.
func (s *ActiveSet) Filters() []criteria.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := make([]criteria.Filter, len(s.entries))
	for i, e := range s.entries {
		filters[i] = e.filter
	}
	return filters
}

// Len returns the number of active filters.
func (s *ActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
