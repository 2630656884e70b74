package embedded

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/model"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestDriver creates an in-memory store for testing
func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := Open(context.Background(), MemoryPath, nil)
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() {
		d.Close(context.Background())
	})
	return d
}

// mustCreate creates a node and returns its id
func mustCreate(t *testing.T, r driver.Runner, label string, props map[string]any) int64 {
	t.Helper()
	resp, err := r.Request(context.Background(), cypher.CreateNode{Labels: []string{label}, Properties: props})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	return resp.Rows[0][cypher.ColumnID].(int64)
}

// mustRelate creates a relationship and returns its id
func mustRelate(t *testing.T, r driver.Runner, start, end int64, relType string) int64 {
	t.Helper()
	resp, err := r.Request(context.Background(), cypher.CreateRelationship{StartID: start, EndID: end, Type: relType})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	return resp.Rows[0][cypher.ColumnID].(int64)
}

// names returns the name property of every row's node
func names(t *testing.T, resp *model.Response) []string {
	t.Helper()
	var out []string
	for _, row := range resp.Rows {
		node := row[cypher.ColumnNode].(model.Node)
		name, _ := node.GetProperty("name")
		out = append(out, name.(string))
	}
	return out
}

// seedCrafts creates a small set of labelled nodes
func seedCrafts(t *testing.T, r driver.Runner) {
	t.Helper()
	mustCreate(t, r, "Craft", map[string]any{"name": "Vostok 1", "manned": "Y", "mass": int64(4725), "crewed": true})
	mustCreate(t, r, "Craft", map[string]any{"name": "Sputnik 1", "manned": "N", "mass": int64(83)})
	mustCreate(t, r, "Craft", map[string]any{"name": "Gemini 3", "manned": "Y", "mass": int64(3236), "crewed": true})
	mustCreate(t, r, "Craft", map[string]any{"name": "Explorer 1", "mass": 13.97})
	mustCreate(t, r, "Site", map[string]any{"name": "Baikonur"})
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestUnmarshalProperties(t *testing.T) {
	props, err := unmarshalProperties(`{"a": 1, "b": 1.5, "c": "x", "d": [1, "y"], "e": true, "f": null}`)
	require.NoError(t, err)

	assert.Equal(t, int64(1), props["a"])
	assert.Equal(t, 1.5, props["b"])
	assert.Equal(t, "x", props["c"])
	assert.Equal(t, []any{int64(1), "y"}, props["d"])
	assert.Equal(t, true, props["e"])
	assert.Nil(t, props["f"])

	empty, err := unmarshalProperties("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestJSONPath(t *testing.T) {
	assert.Equal(t, `$."name"`, jsonPath("name"))
	assert.Equal(t, `$."a\"b"`, jsonPath(`a"b`))
}

func TestSQLValue(t *testing.T) {
	assert.Equal(t, 1, sqlValue(true))
	assert.Equal(t, 0, sqlValue(false))
	assert.Equal(t, "x", sqlValue("x"))
	assert.Equal(t, `["a"]`, sqlValue([]any{"a"}))
}

// ============================================================================
// Node Tests
// ============================================================================

func TestCreateAndQueryNode(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	resp, err := d.Request(ctx, cypher.CreateNode{
		Labels:     []string{"Satellite", "Craft", "Satellite"},
		Properties: map[string]any{"name": "Sputnik 1", "mass": int64(83), "tags": []any{"first"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Statistics.NodesCreated)
	assert.Equal(t, 2, resp.Statistics.LabelsAdded)
	assert.Equal(t, 3, resp.Statistics.PropertiesSet)
	id := resp.Rows[0][cypher.ColumnID].(int64)

	resp, err = d.Request(ctx, cypher.NodeQuery{IDs: []int64{id}})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, []string{cypher.ColumnNode, cypher.ColumnPaths}, resp.Columns)

	node := resp.Rows[0][cypher.ColumnNode].(model.Node)
	assert.Equal(t, id, node.ID)
	assert.Equal(t, []string{"Craft", "Satellite"}, node.Labels)
	assert.Equal(t, map[string]any{"name": "Sputnik 1", "mass": int64(83), "tags": []any{"first"}}, node.Properties)
}

func TestUpdateNode(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	id := mustCreate(t, d, "Craft", map[string]any{"name": "old", "mass": int64(1)})

	resp, err := d.Request(ctx, cypher.UpdateNode{ID: id, Properties: map[string]any{"name": "new"}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Statistics.PropertiesSet, "one set, one removed")

	resp, err = d.Request(ctx, cypher.NodeQuery{IDs: []int64{id}})
	require.NoError(t, err)
	node := resp.Rows[0][cypher.ColumnNode].(model.Node)
	assert.Equal(t, map[string]any{"name": "new"}, node.Properties)

	resp, err = d.Request(ctx, cypher.UpdateNode{ID: 9999, Properties: map[string]any{"name": "x"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Rows, "missing nodes match nothing")
}

func TestDeleteNodeDetaches(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	a := mustCreate(t, d, "Craft", map[string]any{"name": "a"})
	b := mustCreate(t, d, "Site", map[string]any{"name": "b"})
	mustRelate(t, d, a, b, "LAUNCHED_FROM")
	mustRelate(t, d, b, a, "HOSTS")

	resp, err := d.Request(ctx, cypher.DeleteNode{ID: a})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Statistics.NodesDeleted)
	assert.Equal(t, 2, resp.Statistics.RelationshipsDeleted)

	resp, err = d.Request(ctx, cypher.NodeQuery{Depth: cypher.Unbounded})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Len(t, resp.Rows[0][cypher.ColumnPaths].([]any), 1, "only the remaining node")
}

func TestDeleteByLabel(t *testing.T) {
	d := newTestDriver(t)
	seedCrafts(t, d)

	resp, err := d.Request(context.Background(), cypher.DeleteByLabel{Label: "Craft"})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Statistics.NodesDeleted)

	resp, err = d.Request(context.Background(), cypher.CountQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Rows[0][cypher.ColumnCount])
}

// ============================================================================
// Query Refinement Tests
// ============================================================================

func TestNodeQueryFilters(t *testing.T) {
	d := newTestDriver(t)
	seedCrafts(t, d)

	tests := []struct {
		name     string
		filters  cypher.Filters
		expected []string
	}{
		{"equals", cypher.Filters{cypher.NewFilter("manned", "Y")}, []string{"Vostok 1", "Gemini 3"}},
		{"not equals skips missing", cypher.Filters{cypher.Compare("manned", cypher.NotEquals, "Y")}, []string{"Sputnik 1"}},
		{"greater than", cypher.Filters{cypher.Compare("mass", cypher.GreaterThan, int64(1000))}, []string{"Vostok 1", "Gemini 3"}},
		{"less or equal float", cypher.Filters{cypher.Compare("mass", cypher.LessThanEqual, 13.97)}, []string{"Explorer 1"}},
		{"in", cypher.Filters{cypher.Compare("name", cypher.In, []any{"Sputnik 1", "Explorer 1", "nope"})}, []string{"Sputnik 1", "Explorer 1"}},
		{"empty in", cypher.Filters{cypher.Compare("name", cypher.In, []any{})}, nil},
		{"contains", cypher.Filters{cypher.Compare("name", cypher.Contains, "ni")}, []string{"Sputnik 1", "Gemini 3"}},
		{"starts with", cypher.Filters{cypher.Compare("name", cypher.StartingWith, "Vos")}, []string{"Vostok 1"}},
		{"ends with", cypher.Filters{cypher.Compare("name", cypher.EndingWith, " 1")}, []string{"Vostok 1", "Sputnik 1", "Explorer 1"}},
		{"is null", cypher.Filters{cypher.Compare("manned", cypher.IsNull, nil)}, []string{"Explorer 1"}},
		{"exists", cypher.Filters{cypher.Compare("crewed", cypher.Exists, nil)}, []string{"Vostok 1", "Gemini 3"}},
		{"is true", cypher.Filters{cypher.Compare("crewed", cypher.IsTrue, nil)}, []string{"Vostok 1", "Gemini 3"}},
		{"bool equality", cypher.Filters{cypher.NewFilter("crewed", true)}, []string{"Vostok 1", "Gemini 3"}},
		{"negated", cypher.Filters{cypher.NewFilter("manned", "Y").Not()}, []string{"Sputnik 1"}},
		{
			"or",
			cypher.Filters{cypher.NewFilter("name", "Vostok 1")}.Or(cypher.NewFilter("name", "Sputnik 1")),
			[]string{"Vostok 1", "Sputnik 1"},
		},
		{
			"and",
			cypher.Filters{cypher.NewFilter("manned", "Y")}.And(cypher.Compare("mass", cypher.LessThan, int64(4000))),
			[]string{"Gemini 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Request(context.Background(), cypher.NodeQuery{Label: "Craft", Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(t, resp))
		})
	}
}

func TestNodeQuerySortAndPage(t *testing.T) {
	d := newTestDriver(t)
	seedCrafts(t, d)
	ctx := context.Background()

	resp, err := d.Request(ctx, cypher.NodeQuery{Label: "Craft", Sort: cypher.NewSortOrder().Add("name")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Explorer 1", "Gemini 3", "Sputnik 1", "Vostok 1"}, names(t, resp))

	resp, err = d.Request(ctx, cypher.NodeQuery{Label: "Craft", Sort: cypher.NewSortOrder().Desc("name")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vostok 1", "Sputnik 1", "Gemini 3", "Explorer 1"}, names(t, resp))

	resp, err = d.Request(ctx, cypher.NodeQuery{Label: "Craft", Sort: cypher.NewSortOrder().Add("manned", "name")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sputnik 1", "Gemini 3", "Vostok 1", "Explorer 1"}, names(t, resp), "missing values sort last")

	resp, err = d.Request(ctx, cypher.NodeQuery{
		Label: "Craft",
		Sort:  cypher.NewSortOrder().Add("name"),
		Page:  cypher.NewPagination(1, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vostok 1"}, names(t, resp))
}

func TestCountQuery(t *testing.T) {
	d := newTestDriver(t)
	seedCrafts(t, d)

	resp, err := d.Request(context.Background(), cypher.CountQuery{Label: "Craft", Filters: cypher.Filters{cypher.NewFilter("manned", "Y")}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Rows[0][cypher.ColumnCount])
	assert.Empty(t, resp.Notifications)
}

func TestUnknownPropertyKeyNotification(t *testing.T) {
	d := newTestDriver(t)
	seedCrafts(t, d)

	resp, err := d.Request(context.Background(), cypher.NodeQuery{
		Label:   "Craft",
		Filters: cypher.Filters{cypher.NewFilter("colour", "red")},
		Sort:    cypher.NewSortOrder().Add("colour", "name"),
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Rows)

	require.Len(t, resp.Notifications, 1)
	n := resp.Notifications[0]
	assert.Equal(t, driver.CodeUnknownPropertyKey, n.Code)
	assert.True(t, n.IsWarning())
	assert.Nil(t, n.Position)
	assert.Contains(t, n.Description, "the missing property name is: colour")
}

// ============================================================================
// Depth Tests
// ============================================================================

func TestNodeQueryDepth(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	program := mustCreate(t, d, "Program", map[string]any{"name": "Vostok"})
	v1 := mustCreate(t, d, "Satellite", map[string]any{"name": "Vostok 1"})
	v2 := mustCreate(t, d, "Satellite", map[string]any{"name": "Vostok 2"})
	site := mustCreate(t, d, "Location", map[string]any{"name": "Baikonur"})
	mustRelate(t, d, v1, program, "BELONGS_TO")
	mustRelate(t, d, v2, program, "BELONGS_TO")
	mustRelate(t, d, v1, site, "LAUNCHED_FROM")

	tests := []struct {
		depth int
		nodes int
		rels  int
	}{
		{depth: 0, nodes: 1, rels: 0},
		{depth: 1, nodes: 3, rels: 2},
		{depth: 2, nodes: 4, rels: 3},
		{depth: cypher.Unbounded, nodes: 4, rels: 3},
	}

	for _, tt := range tests {
		resp, err := d.Request(ctx, cypher.NodeQuery{Label: "Program", Depth: tt.depth})
		require.NoError(t, err)
		require.Len(t, resp.Rows, 1)

		g := resp.Graph()
		assert.Len(t, g.Nodes, tt.nodes, "depth %d", tt.depth)
		assert.Len(t, g.Relationships, tt.rels, "depth %d", tt.depth)
	}

	resp, err := d.Request(ctx, cypher.NodeQuery{Label: "Program", Depth: 2})
	require.NoError(t, err)
	dist := resp.Graph().Distances(program)
	assert.Equal(t, 2, dist[site])
	assert.Equal(t, 1, dist[v2])
}

// ============================================================================
// Relationship Tests
// ============================================================================

func TestCreateRelationshipMerges(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	a := mustCreate(t, d, "Satellite", nil)
	b := mustCreate(t, d, "Orbit", nil)

	first := mustRelate(t, d, a, b, "IN_ORBIT")
	resp, err := d.Request(ctx, cypher.CreateRelationship{
		StartID: a, EndID: b, Type: "IN_ORBIT", Properties: map[string]any{"since": "1957"},
	})
	require.NoError(t, err)
	assert.Equal(t, first, resp.Rows[0][cypher.ColumnID])
	assert.Zero(t, resp.Statistics.RelationshipsCreated)

	resp, err = d.Request(ctx, cypher.CreateRelationship{StartID: a, EndID: 9999, Type: "IN_ORBIT"})
	require.NoError(t, err)
	assert.Empty(t, resp.Rows, "missing endpoint matches nothing")

	resp, err = d.Request(ctx, cypher.DeleteRelationship{StartID: a, EndID: b, Type: "IN_ORBIT"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Statistics.RelationshipsDeleted)
}

// ============================================================================
// Constraint Tests
// ============================================================================

func TestUniqueConstraintViolation(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	resp, err := d.Request(ctx, cypher.CreateUniqueConstraint{Label: "CONSTRAINTED_NODE", Property: "name"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Statistics.ConstraintsAdded)

	resp, err = d.Request(ctx, cypher.CreateUniqueConstraint{Label: "CONSTRAINTED_NODE", Property: "name"})
	require.NoError(t, err)
	assert.Zero(t, resp.Statistics.ConstraintsAdded, "IF NOT EXISTS")

	existing := mustCreate(t, d, "CONSTRAINTED_NODE", map[string]any{"name": "test"})

	_, err = d.Request(ctx, cypher.CreateNode{Labels: []string{"CONSTRAINTED_NODE"}, Properties: map[string]any{"name": "test"}})
	require.Error(t, err)
	var ce *driver.CypherError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, driver.CodeConstraintValidationFailed, ce.Code)
	assert.Contains(t, ce.Description, "already exists with label `CONSTRAINTED_NODE` and property `name` = 'test'")
	assert.True(t, driver.IsConstraintViolation(err))

	other := mustCreate(t, d, "CONSTRAINTED_NODE", map[string]any{"name": "other"})
	_, err = d.Request(ctx, cypher.UpdateNode{ID: other, Properties: map[string]any{"name": "test"}})
	assert.True(t, driver.IsConstraintViolation(err))

	_, err = d.Request(ctx, cypher.UpdateNode{ID: existing, Properties: map[string]any{"name": "test", "x": int64(1)}})
	assert.NoError(t, err, "a node does not conflict with itself")

	resp, err = d.Request(ctx, cypher.ListConstraints{})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"label": "CONSTRAINTED_NODE", "property": "name"}}, resp.Rows)
}

func TestConstraintCreationFailsOnDuplicates(t *testing.T) {
	d := newTestDriver(t)
	mustCreate(t, d, "Craft", map[string]any{"name": "twin"})
	mustCreate(t, d, "Craft", map[string]any{"name": "twin"})

	_, err := d.Request(context.Background(), cypher.CreateUniqueConstraint{Label: "Craft", Property: "name"})
	var ce *driver.CypherError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, driver.CodeConstraintCreationFailed, ce.Code)
}

// ============================================================================
// Transaction Tests
// ============================================================================

func TestTransactionCommitAndRollback(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	id := mustCreate(t, d, "Craft", map[string]any{"name": "original"})

	tx, err := d.BeginTransaction(ctx, driver.AccessModeWrite)
	require.NoError(t, err)
	_, err = tx.Request(ctx, cypher.UpdateNode{ID: id, Properties: map[string]any{"name": "changed"}})
	require.NoError(t, err)
	resp, err := tx.Request(ctx, cypher.NodeQuery{IDs: []int64{id}})
	require.NoError(t, err)
	assert.Equal(t, []string{"changed"}, names(t, resp), "writes are visible inside the transaction")
	require.NoError(t, tx.Rollback(ctx))

	resp, err = d.Request(ctx, cypher.NodeQuery{IDs: []int64{id}})
	require.NoError(t, err)
	assert.Equal(t, []string{"original"}, names(t, resp))

	tx, err = d.BeginTransaction(ctx, driver.AccessModeWrite)
	require.NoError(t, err)
	_, err = tx.Request(ctx, cypher.UpdateNode{ID: id, Properties: map[string]any{"name": "committed"}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	resp, err = d.Request(ctx, cypher.NodeQuery{IDs: []int64{id}})
	require.NoError(t, err)
	assert.Equal(t, []string{"committed"}, names(t, resp))

	assert.ErrorIs(t, tx.Commit(ctx), driver.ErrTransactionClosed)
	assert.ErrorIs(t, tx.Rollback(ctx), driver.ErrTransactionClosed)
	_, err = tx.Request(ctx, cypher.CountQuery{})
	assert.ErrorIs(t, err, driver.ErrTransactionClosed)
}

func TestFailedAutocommitLeavesNoTrace(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()
	_, err := d.Request(ctx, cypher.CreateUniqueConstraint{Label: "Craft", Property: "name"})
	require.NoError(t, err)
	mustCreate(t, d, "Craft", map[string]any{"name": "x"})

	_, err = d.Request(ctx, cypher.CreateNode{Labels: []string{"Craft"}, Properties: map[string]any{"name": "x"}})
	require.Error(t, err)

	resp, err := d.Request(ctx, cypher.CountQuery{Label: "Craft"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Rows[0][cypher.ColumnCount])
}

func TestRawQueryUnsupported(t *testing.T) {
	d := newTestDriver(t)
	_, err := d.Request(context.Background(), cypher.RawQuery{Text: "RETURN 1"})
	assert.ErrorIs(t, err, driver.ErrUnsupportedStatement)
}

func TestClosedDriver(t *testing.T) {
	d, err := Open(context.Background(), MemoryPath, nil)
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()), "close is idempotent")

	_, err = d.Request(context.Background(), cypher.CountQuery{})
	assert.ErrorIs(t, err, driver.ErrDriverClosed)
	_, err = d.BeginTransaction(context.Background(), driver.AccessModeRead)
	assert.ErrorIs(t, err, driver.ErrDriverClosed)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	ctx := context.Background()

	d, err := Open(ctx, path, nil)
	require.NoError(t, err)
	mustCreate(t, d, "Craft", map[string]any{"name": "kept"})
	require.NoError(t, d.Close(ctx))

	d, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer d.Close(ctx)

	resp, err := d.Request(ctx, cypher.NodeQuery{Label: "Craft"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names(t, resp))
}
