package model

import (
	"fmt"
	"strings"
)

// Response is what a driver returns for a single statement
type Response struct {
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	Statistics    QueryStatistics  `json:"statistics"`
	Notifications []Notification   `json:"notifications,omitempty"`
}

// Graph collects the nodes and relationships of every row, visiting
// columns in their declared order
func (r *Response) Graph() *Graph {
	g := NewGraph()
	for _, row := range r.Rows {
		g.Collect(RowValues(r.Columns, row)...)
	}
	return g
}

// RowValues returns the values of row ordered by columns; keys missing
// from columns are appended afterwards
func RowValues(columns []string, row map[string]any) []any {
	values := make([]any, 0, len(row))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			values = append(values, v)
			seen[c] = true
		}
	}
	if len(seen) < len(row) {
		values = append(values, without(row, seen))
	}
	return values
}

func without(row map[string]any, skip map[string]bool) map[string]any {
	rest := make(map[string]any, len(row)-len(skip))
	for k, v := range row {
		if !skip[k] {
			rest[k] = v
		}
	}
	return rest
}

// QueryStatistics counts the updates a statement performed
type QueryStatistics struct {
	NodesCreated         int `json:"nodes_created"`
	NodesDeleted         int `json:"nodes_deleted"`
	RelationshipsCreated int `json:"relationships_created"`
	RelationshipsDeleted int `json:"relationships_deleted"`
	PropertiesSet        int `json:"properties_set"`
	LabelsAdded          int `json:"labels_added"`
	LabelsRemoved        int `json:"labels_removed"`
	ConstraintsAdded     int `json:"constraints_added"`
	ConstraintsRemoved   int `json:"constraints_removed"`
}

// ContainsUpdates reports whether anything was written
func (s QueryStatistics) ContainsUpdates() bool {
	return s != QueryStatistics{}
}

// Add accumulates other into s
func (s *QueryStatistics) Add(other QueryStatistics) {
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.PropertiesSet += other.PropertiesSet
	s.LabelsAdded += other.LabelsAdded
	s.LabelsRemoved += other.LabelsRemoved
	s.ConstraintsAdded += other.ConstraintsAdded
	s.ConstraintsRemoved += other.ConstraintsRemoved
}

// Notification severities reported by the server
const (
	SeverityWarning     = "WARNING"
	SeverityInformation = "INFORMATION"
)

// InputPosition locates a notification inside the statement text
type InputPosition struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Notification is diagnostic metadata attached to a result
type Notification struct {
	Code        string `json:"code"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Category    string `json:"category,omitempty"`

	// Position is nil when the server did not report where in the
	// statement the notification applies
	Position *InputPosition `json:"position,omitempty"`
}

// IsWarning reports whether the notification should be surfaced as a warning
func (n Notification) IsWarning() bool {
	return strings.EqualFold(n.Severity, SeverityWarning)
}

// String renders the notification on one line
func (n Notification) String() string {
	var b strings.Builder
	b.WriteString(n.Code)
	if n.Title != "" {
		b.WriteString(": ")
		b.WriteString(n.Title)
	}
	if n.Description != "" {
		b.WriteString(" - ")
		b.WriteString(n.Description)
	}
	if n.Position != nil {
		fmt.Fprintf(&b, " (line %d, column %d, offset %d)", n.Position.Line, n.Position.Column, n.Position.Offset)
	}
	return b.String()
}
