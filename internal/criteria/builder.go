package criteria

// ListingParams is the UI listing state a criteria is composed from.
type ListingParams struct {
	Page          int
	Limit         int
	SortBy        string
	SortDirection Direction
	NaturalSort   bool
	Term          string
	Filters       []Filter
}

// ForListing composes a criteria from listing state. Filters are kept in
// order and combine with AND; an empty SortBy adds no sorting.
func ForListing(p ListingParams) Criteria {
	c := New(p.Page, p.Limit).WithTerm(p.Term)
	if p.SortBy != "" {
		c = c.WithSorting(Sort(p.SortBy, p.SortDirection, p.NaturalSort))
	}
	if len(p.Filters) > 0 {
		c = c.WithFilter(p.Filters...)
	}
	return c
}
