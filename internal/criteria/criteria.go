package criteria

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultLimit is applied when a criteria is created without an explicit page size.
const DefaultLimit = 25

// TotalCountMode controls whether a search also reports the full hit count.
type TotalCountMode int

const (
	TotalCountNone TotalCountMode = iota
	TotalCountExact
)

// Criteria is a declarative query description: pagination, predicates, sorting,
// a free-text term and independently configured association sub-criteria.
//
// Criteria behaves as a value. Every With* method returns a modified copy and
// leaves the receiver untouched, so association criteria always form a tree.
type Criteria struct {
	Page           int
	Limit          int
	Term           string
	Filters        []Filter
	Sortings       []Sorting
	Associations   map[string]Criteria
	TotalCountMode TotalCountMode
}

// New creates a criteria for the given page and page size.
func New(page, limit int) Criteria {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return Criteria{Page: page, Limit: limit, TotalCountMode: TotalCountExact}
}

// Offset returns the row offset addressed by Page and Limit.
func (c Criteria) Offset() int {
	if c.Page < 1 || c.Limit < 1 {
		return 0
	}
	return (c.Page - 1) * c.Limit
}

// WithTerm returns a copy with the free-text term replaced.
func (c Criteria) WithTerm(term string) Criteria {
	next := c.clone()
	next.Term = strings.TrimSpace(term)
	return next
}

// WithPage returns a copy addressing another page.
func (c Criteria) WithPage(page int) Criteria {
	next := c.clone()
	next.Page = page
	return next
}

// WithLimit returns a copy with a different page size.
func (c Criteria) WithLimit(limit int) Criteria {
	next := c.clone()
	next.Limit = limit
	return next
}

// WithFilter returns a copy with the filters appended. Filters combine with AND.
func (c Criteria) WithFilter(filters ...Filter) Criteria {
	next := c.clone()
	for _, f := range filters {
		next.Filters = append(next.Filters, f.clone())
	}
	return next
}

// WithSorting returns a copy with the sortings appended.
func (c Criteria) WithSorting(sortings ...Sorting) Criteria {
	next := c.clone()
	next.Sortings = append(next.Sortings, sortings...)
	return next
}

// WithAssociation returns a copy where the association at path is replaced by
// sub. Dotted paths ("options.group") create intermediate nodes as needed and
// keep any configuration already present on them.
func (c Criteria) WithAssociation(path string, sub Criteria) Criteria {
	head, rest, nested := strings.Cut(path, ".")
	next := c.clone()
	if next.Associations == nil {
		next.Associations = make(map[string]Criteria)
	}
	if !nested {
		next.Associations[head] = sub.clone()
		return next
	}
	current, ok := next.Associations[head]
	if !ok {
		current = Criteria{}
	}
	next.Associations[head] = current.WithAssociation(rest, sub)
	return next
}

// AddAssociation is WithAssociation with an empty sub-criteria, unless the
// node already exists, in which case its configuration is kept.
func (c Criteria) AddAssociation(path string) Criteria {
	if _, ok := c.Association(path); ok {
		return c.clone()
	}
	return c.WithAssociation(path, Criteria{})
}

// Association returns the sub-criteria stored at path.
func (c Criteria) Association(path string) (Criteria, bool) {
	head, rest, nested := strings.Cut(path, ".")
	sub, ok := c.Associations[head]
	if !ok {
		return Criteria{}, false
	}
	if !nested {
		return sub.clone(), true
	}
	return sub.Association(rest)
}

// HasAssociation reports whether a node exists at path.
func (c Criteria) HasAssociation(path string) bool {
	_, ok := c.Association(path)
	return ok
}

// AssociationPaths lists every node of the association tree as a dotted path,
// sorted lexically.
func (c Criteria) AssociationPaths() []string {
	var paths []string
	var walk func(prefix string, node Criteria)
	walk = func(prefix string, node Criteria) {
		for name, sub := range node.Associations {
			path := name
			if prefix != "" {
				path = prefix + "." + name
			}
			paths = append(paths, path)
			walk(path, sub)
		}
	}
	walk("", c)
	sort.Strings(paths)
	return paths
}

// Validate reports structural problems in the criteria and its associations.
func (c Criteria) Validate() error {
	var errs []error
	if c.Page < 0 {
		errs = append(errs, fmt.Errorf("page must not be negative, got %d", c.Page))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	for i, f := range c.Filters {
		if err := f.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("filter %d: %w", i, err))
		}
	}
	for i, s := range c.Sortings {
		if strings.TrimSpace(s.Field) == "" {
			errs = append(errs, fmt.Errorf("sorting %d: field is required", i))
		}
	}
	for _, name := range sortedKeys(c.Associations) {
		if err := c.Associations[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("association %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c Criteria) clone() Criteria {
	next := Criteria{
		Page:           c.Page,
		Limit:          c.Limit,
		Term:           c.Term,
		TotalCountMode: c.TotalCountMode,
	}
	if len(c.Filters) > 0 {
		next.Filters = make([]Filter, len(c.Filters))
		for i, f := range c.Filters {
			next.Filters[i] = f.clone()
		}
	}
	if len(c.Sortings) > 0 {
		next.Sortings = append([]Sorting(nil), c.Sortings...)
	}
	if len(c.Associations) > 0 {
		next.Associations = make(map[string]Criteria, len(c.Associations))
		for name, sub := range c.Associations {
			next.Associations[name] = sub.clone()
		}
	}
	return next
}

func sortedKeys(m map[string]Criteria) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
