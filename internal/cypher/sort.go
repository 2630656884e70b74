package cypher

import (
	"fmt"
	"strings"
)

// SortDirection orders a sort clause
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// SortClause orders results by one property
type SortClause struct {
	Property  string
	Direction SortDirection
}

// SortOrder is an ordered list of sort clauses
type SortOrder struct {
	clauses []SortClause
}

// NewSortOrder creates an empty sort order
func NewSortOrder() *SortOrder {
	return &SortOrder{}
}

// Add appends ascending clauses for properties
func (s *SortOrder) Add(properties ...string) *SortOrder {
	return s.AddWithDirection(Ascending, properties...)
}

// AddWithDirection appends clauses for properties in the given direction
func (s *SortOrder) AddWithDirection(direction SortDirection, properties ...string) *SortOrder {
	for _, p := range properties {
		s.clauses = append(s.clauses, SortClause{Property: p, Direction: direction})
	}
	return s
}

// Asc is shorthand for Add
func (s *SortOrder) Asc(properties ...string) *SortOrder {
	return s.AddWithDirection(Ascending, properties...)
}

// Desc appends descending clauses for properties
func (s *SortOrder) Desc(properties ...string) *SortOrder {
	return s.AddWithDirection(Descending, properties...)
}

// Clauses returns a copy of the clauses
func (s *SortOrder) Clauses() []SortClause {
	if s == nil {
		return nil
	}
	return append([]SortClause(nil), s.clauses...)
}

// IsEmpty returns true when no clause was added
func (s *SortOrder) IsEmpty() bool {
	return s == nil || len(s.clauses) == 0
}

// Properties lists the sorted property keys
func (s *SortOrder) Properties() []string {
	if s == nil {
		return nil
	}
	props := make([]string, 0, len(s.clauses))
	for _, c := range s.clauses {
		props = append(props, c.Property)
	}
	return props
}

// Validate checks every clause
func (s *SortOrder) Validate() error {
	if s == nil {
		return nil
	}
	for _, c := range s.clauses {
		if c.Property == "" {
			return fmt.Errorf("sort clause has no property")
		}
		if c.Direction != Ascending && c.Direction != Descending {
			return fmt.Errorf("sort clause on %q has unknown direction %q", c.Property, c.Direction)
		}
	}
	return nil
}

// orderBy renders "alias.`p` ASC, ..." or "" when empty
func (s *SortOrder) orderBy(alias string) string {
	if s.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(s.clauses))
	for _, c := range s.clauses {
		parts = append(parts, fmt.Sprintf("%s.%s %s", alias, Quote(c.Property), c.Direction))
	}
	return strings.Join(parts, ", ")
}

// Pagination selects one page of results
type Pagination struct {
	Page int
	Size int
}

// NewPagination creates a pagination for a zero-based page
func NewPagination(page, size int) *Pagination {
	return &Pagination{Page: page, Size: size}
}

// Skip returns the number of rows before the page
func (p Pagination) Skip() int {
	return p.Page * p.Size
}

// Validate checks page and size
func (p Pagination) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("page must not be negative, got %d", p.Page)
	}
	if p.Size <= 0 {
		return fmt.Errorf("page size must be positive, got %d", p.Size)
	}
	return nil
}
