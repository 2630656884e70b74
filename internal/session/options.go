package session

import "graphogm/internal/cypher"

// Option refines a load or save
type Option func(*options)

type options struct {
	filters cypher.Filters
	sort    *cypher.SortOrder
	page    *cypher.Pagination
	depth   int
}

// WithFilters restricts loaded entities
func WithFilters(filters ...cypher.Filter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

// WithSort orders loaded entities
func WithSort(sort *cypher.SortOrder) Option {
	return func(o *options) {
		o.sort = sort
	}
}

// WithPage loads one page of entities
func WithPage(page *cypher.Pagination) Option {
	return func(o *options) {
		o.page = page
	}
}

// WithDepth sets how many relationship hops are loaded or saved; -1 follows
// everything reachable
func WithDepth(depth int) Option {
	return func(o *options) {
		o.depth = depth
	}
}

func buildOptions(defaultDepth int, opts []Option) options {
	o := options{depth: defaultDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
