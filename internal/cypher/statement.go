package cypher

import (
	"fmt"
	"strings"
)

// Statement is anything a driver can execute
type Statement interface {
	Cypher() string
	Parameters() map[string]any
}

// Column names returned by the mapper's own statements
const (
	ColumnNode     = "n"
	ColumnPaths    = "paths"
	ColumnID       = "id"
	ColumnCount    = "count"
	ColumnLabel    = "label"
	ColumnProperty = "property"
)

// Unbounded depth follows every reachable relationship
const Unbounded = -1

// ============================================================================
// Reads
// ============================================================================

// NodeQuery matches nodes and the paths around them
type NodeQuery struct {
	Label   string // empty matches any node
	IDs     []int64
	Filters Filters
	Sort    *SortOrder
	Page    *Pagination
	Depth   int
}

// Validate checks the query's refinements
func (q NodeQuery) Validate() error {
	if q.Depth < Unbounded {
		return fmt.Errorf("invalid depth %d", q.Depth)
	}
	if err := q.Filters.Validate(); err != nil {
		return err
	}
	if err := q.Sort.Validate(); err != nil {
		return err
	}
	if q.Page != nil {
		return q.Page.Validate()
	}
	return nil
}

// Cypher renders the query; the text only depends on the query's shape and
// is cached accordingly
func (q NodeQuery) Cypher() string {
	return cached(q.shape(), q.render)
}

func (q NodeQuery) shape() string {
	return fmt.Sprintf("node|%s|%t|%s|%s|%t|%d",
		q.Label, len(q.IDs) > 0, q.Filters.shape(), q.Sort.orderBy("n"), q.Page != nil, q.Depth)
}

func (q NodeQuery) render() string {
	var b strings.Builder
	b.WriteString(matchClause(q.Label))
	b.WriteString(whereClause(len(q.IDs) > 0, q.Filters))

	orderBy := q.Sort.orderBy(ColumnNode)
	b.WriteString(" WITH n")
	if orderBy != "" {
		b.WriteString(" ORDER BY " + orderBy)
	}
	if q.Page != nil {
		b.WriteString(" SKIP $skip LIMIT $limit")
	}

	fmt.Fprintf(&b, " MATCH p=(n)-[%s]-() WITH n, collect(p) AS paths RETURN n, paths", depthRange(q.Depth))
	if orderBy != "" {
		b.WriteString(" ORDER BY " + orderBy)
	}
	return b.String()
}

// Parameters returns the bound values
func (q NodeQuery) Parameters() map[string]any {
	params := q.Filters.parameters()
	if len(q.IDs) > 0 {
		params["ids"] = q.IDs
	}
	if q.Page != nil {
		params["skip"] = q.Page.Skip()
		params["limit"] = q.Page.Size
	}
	return params
}

// CountQuery counts matching nodes
type CountQuery struct {
	Label   string
	Filters Filters
}

// Cypher renders the query
func (q CountQuery) Cypher() string {
	return cached("count|"+q.Label+"|"+q.Filters.shape(), func() string {
		return matchClause(q.Label) + whereClause(false, q.Filters) + " RETURN count(n) AS count"
	})
}

// Parameters returns the bound values
func (q CountQuery) Parameters() map[string]any {
	return q.Filters.parameters()
}

// ListConstraints returns the unique constraints of the database, one row
// per label and property
type ListConstraints struct{}

// Cypher renders the query
func (ListConstraints) Cypher() string {
	return "SHOW CONSTRAINTS YIELD labelsOrTypes, properties, type " +
		"WHERE type IN ['UNIQUENESS', 'NODE_PROPERTY_UNIQUENESS'] " +
		"RETURN labelsOrTypes[0] AS label, properties[0] AS property"
}

// Parameters returns the bound values
func (ListConstraints) Parameters() map[string]any {
	return map[string]any{}
}

// ============================================================================
// Writes
// ============================================================================

// CreateNode creates one node and returns its id
type CreateNode struct {
	Labels     []string
	Properties map[string]any
}

// Cypher renders the statement
func (s CreateNode) Cypher() string {
	return fmt.Sprintf("CREATE (n%s $props) RETURN ID(n) AS id", labelList(s.Labels))
}

// Parameters returns the bound values
func (s CreateNode) Parameters() map[string]any {
	return map[string]any{"props": nonNil(s.Properties)}
}

// UpdateNode replaces every property of a node
type UpdateNode struct {
	ID         int64
	Properties map[string]any
}

// Cypher renders the statement
func (s UpdateNode) Cypher() string {
	return "MATCH (n) WHERE ID(n) = $id SET n = $props RETURN ID(n) AS id"
}

// Parameters returns the bound values
func (s UpdateNode) Parameters() map[string]any {
	return map[string]any{"id": s.ID, "props": nonNil(s.Properties)}
}

// DeleteNode removes a node and its relationships
type DeleteNode struct {
	ID int64
}

// Cypher renders the statement
func (s DeleteNode) Cypher() string {
	return "MATCH (n) WHERE ID(n) = $id DETACH DELETE n"
}

// Parameters returns the bound values
func (s DeleteNode) Parameters() map[string]any {
	return map[string]any{"id": s.ID}
}

// DeleteByLabel removes every node with a label
type DeleteByLabel struct {
	Label string
}

// Cypher renders the statement
func (s DeleteByLabel) Cypher() string {
	return matchClause(s.Label) + " DETACH DELETE n"
}

// Parameters returns the bound values
func (s DeleteByLabel) Parameters() map[string]any {
	return map[string]any{}
}

// CreateRelationship merges a relationship between two existing nodes
type CreateRelationship struct {
	StartID    int64
	EndID      int64
	Type       string
	Properties map[string]any
}

// Cypher renders the statement
func (s CreateRelationship) Cypher() string {
	return fmt.Sprintf("MATCH (a), (b) WHERE ID(a) = $start AND ID(b) = $end "+
		"MERGE (a)-[r:%s]->(b) SET r += $props RETURN ID(r) AS id", Quote(s.Type))
}

// Parameters returns the bound values
func (s CreateRelationship) Parameters() map[string]any {
	return map[string]any{"start": s.StartID, "end": s.EndID, "props": nonNil(s.Properties)}
}

// DeleteRelationship removes relationships of a type between two nodes
type DeleteRelationship struct {
	StartID int64
	EndID   int64
	Type    string
}

// Cypher renders the statement
func (s DeleteRelationship) Cypher() string {
	return fmt.Sprintf("MATCH (a)-[r:%s]->(b) WHERE ID(a) = $start AND ID(b) = $end DELETE r", Quote(s.Type))
}

// Parameters returns the bound values
func (s DeleteRelationship) Parameters() map[string]any {
	return map[string]any{"start": s.StartID, "end": s.EndID}
}

// CreateUniqueConstraint asserts a property is unique among nodes of a label
type CreateUniqueConstraint struct {
	Label    string
	Property string
}

// Cypher renders the statement
func (s CreateUniqueConstraint) Cypher() string {
	return fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		Quote(s.Label), Quote(s.Property))
}

// Parameters returns the bound values
func (s CreateUniqueConstraint) Parameters() map[string]any {
	return map[string]any{}
}

// RawQuery is caller-supplied Cypher
type RawQuery struct {
	Text   string
	Params map[string]any
}

// Cypher returns the text unchanged
func (s RawQuery) Cypher() string {
	return s.Text
}

// Parameters returns the caller's parameters
func (s RawQuery) Parameters() map[string]any {
	return nonNil(s.Params)
}

// ============================================================================
// Rendering Helpers
// ============================================================================

func matchClause(label string) string {
	if label == "" {
		return "MATCH (n)"
	}
	return "MATCH (n:" + Quote(label) + ")"
}

func whereClause(byID bool, filters Filters) string {
	var conditions []string
	if byID {
		conditions = append(conditions, "ID(n) IN $ids")
	}
	if len(filters) > 0 {
		predicate := filters.predicate(ColumnNode)
		if byID {
			predicate = "(" + predicate + ")"
		}
		conditions = append(conditions, predicate)
	}
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func depthRange(depth int) string {
	if depth < 0 {
		return "*0.."
	}
	return fmt.Sprintf("*0..%d", depth)
}

func labelList(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(":")
		b.WriteString(Quote(l))
	}
	return b.String()
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
