package fixture

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/driver/embedded"
)

const sample = `
nodes:
  - key: baikonur
    labels: [Location]
    properties:
      ref: BAI
      name: Baikonur
  - key: sputnik1
    labels: [Satellite]
    properties:
      name: Sputnik 1
      mass: 83
      period: 96.2
      tags: [first, beeping]
relationships:
  - from: sputnik1
    to: baikonur
    type: LOCATION
    properties:
      pad: 1
`

func openStore(t *testing.T) *embedded.Driver {
	t.Helper()
	ctx := context.Background()
	drv, err := embedded.Open(ctx, embedded.MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close(ctx) })
	return drv
}

func TestYAMLDecode(t *testing.T) {
	f, err := NewYAMLCodec().Decode(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, f.Nodes, 2)
	props := f.Nodes[1].Properties
	assert.Equal(t, int64(83), props["mass"])
	assert.Equal(t, 96.2, props["period"])
	assert.Equal(t, []any{"first", "beeping"}, props["tags"])
	assert.Equal(t, int64(1), f.Relationships[0].Properties["pad"])
	assert.Equal(t, []string{"Location", "Satellite"}, f.Labels())
	assert.Equal(t, 1, f.Count("Satellite"))
}

func TestYAMLDecodeRejectsUnknownFields(t *testing.T) {
	_, err := NewYAMLCodec().Decode(strings.NewReader("nodes: []\nedges: []\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		fixture Fixture
		wantErr string
	}{
		{
			name:    "missing key",
			fixture: Fixture{Nodes: []Node{{Labels: []string{"A"}}}},
			wantErr: "has no key",
		},
		{
			name:    "duplicate key",
			fixture: Fixture{Nodes: []Node{{Key: "a", Labels: []string{"A"}}, {Key: "a", Labels: []string{"A"}}}},
			wantErr: "duplicate node key",
		},
		{
			name:    "no labels",
			fixture: Fixture{Nodes: []Node{{Key: "a"}}},
			wantErr: "has no labels",
		},
		{
			name: "unknown endpoint",
			fixture: Fixture{
				Nodes:         []Node{{Key: "a", Labels: []string{"A"}}},
				Relationships: []Relationship{{From: "a", To: "b", Type: "R"}},
			},
			wantErr: "unknown node \"b\"",
		},
		{
			name: "missing type",
			fixture: Fixture{
				Nodes:         []Node{{Key: "a", Labels: []string{"A"}}},
				Relationships: []Relationship{{From: "a", To: "a"}},
			},
			wantErr: "has no type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fixture.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJSONDecode(t *testing.T) {
	doc := `{"nodes":[{"key":"a","labels":["Orbit"],"properties":{"name":"LEO","apogee":2000,"inclination":51.6}}]}`
	f, err := NewJSONCodec().Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), f.Nodes[0].Properties["apogee"])
	assert.Equal(t, 51.6, f.Nodes[0].Properties["inclination"])
}

func TestCodecFor(t *testing.T) {
	for path, format := range map[string]string{"a.yaml": "yaml", "b.YML": "yaml", "c.json": "json"} {
		codec, err := CodecFor(path)
		require.NoError(t, err)
		assert.Equal(t, format, codec.Format())
	}
	_, err := CodecFor("d.cql")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	fsys := fstest.MapFS{"graph.yaml": {Data: []byte(sample)}}
	f, err := ReadFile(fsys, "graph.yaml")
	require.NoError(t, err)
	assert.Len(t, f.Nodes, 2)

	_, err = ReadFile(fsys, "missing.yaml")
	assert.Error(t, err)
}

func TestImportAndExport(t *testing.T) {
	drv := openStore(t)
	ctx := context.Background()

	f, err := NewYAMLCodec().Decode(strings.NewReader(sample))
	require.NoError(t, err)
	ids, err := Import(ctx, drv, f)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	resp, err := drv.Request(ctx, cypher.CountQuery{Label: "Satellite"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Rows[0][cypher.ColumnCount])

	exported, err := Export(ctx, drv, "")
	require.NoError(t, err)
	require.Len(t, exported.Nodes, 2)
	require.Len(t, exported.Relationships, 1)
	assert.Equal(t, key(ids["sputnik1"]), exported.Relationships[0].From)
	assert.Equal(t, key(ids["baikonur"]), exported.Relationships[0].To)
	assert.Equal(t, "Sputnik 1", exported.Nodes[1].Properties["name"])

	onlySatellites, err := Export(ctx, drv, "Satellite")
	require.NoError(t, err)
	assert.Len(t, onlySatellites.Nodes, 1)
	assert.Empty(t, onlySatellites.Relationships)

	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Encode(exported, &buf))
	again, err := NewYAMLCodec().Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, exported.Relationships, again.Relationships)
	assert.Len(t, again.Nodes, 2)
}

func TestImportRollsBackOnFailure(t *testing.T) {
	drv := openStore(t)
	ctx := context.Background()

	_, err := drv.Request(ctx, cypher.CreateUniqueConstraint{Label: "Location", Property: "ref"})
	require.NoError(t, err)

	f := &Fixture{Nodes: []Node{
		{Key: "a", Labels: []string{"Location"}, Properties: map[string]any{"ref": "BAI"}},
		{Key: "b", Labels: []string{"Location"}, Properties: map[string]any{"ref": "BAI"}},
	}}
	_, err = Import(ctx, drv, f)
	require.Error(t, err)
	assert.True(t, driver.IsConstraintViolation(err))

	resp, err := drv.Request(ctx, cypher.CountQuery{Label: "Location"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Rows[0][cypher.ColumnCount])
}

func TestSplitStatements(t *testing.T) {
	script := `// programs
CREATE (p:Program {name: 'Vostok; Soviet'});
CREATE (s:Satellite {name: "Vostok 1"})
  RETURN s;

;`
	statements := SplitStatements(script)
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE (p:Program {name: 'Vostok; Soviet'})", statements[0])
	assert.Equal(t, "CREATE (s:Satellite {name: \"Vostok 1\"})\n  RETURN s", statements[1])
}

func TestSplitStatementsEscapedQuotes(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "escaped single quote",
			script: `CREATE (p:Program {name: 'It\'s; Vostok'}); CREATE (b)`,
			want:   []string{`CREATE (p:Program {name: 'It\'s; Vostok'})`, "CREATE (b)"},
		},
		{
			name:   "escaped double quote",
			script: `CREATE (s {motto: "say \"hi;\""}); CREATE (b)`,
			want:   []string{`CREATE (s {motto: "say \"hi;\""})`, "CREATE (b)"},
		},
		{
			name:   "escaped backslash closes the literal",
			script: `CREATE (f {path: 'C:\\'}); CREATE (b)`,
			want:   []string{`CREATE (f {path: 'C:\\'})`, "CREATE (b)"},
		},
		{
			name:   "backslash outside a literal",
			script: "RETURN 1 \\ 2; RETURN 3",
			want:   []string{"RETURN 1 \\ 2", "RETURN 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}

func TestReadCypher(t *testing.T) {
	fsys := fstest.MapFS{"init.cql": {Data: []byte("CREATE (a);\nCREATE (b);\n")}}
	statements, err := ReadCypher(fsys, "init.cql")
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE (a)", "CREATE (b)"}, statements)
}

func TestImportCypherNeedsCypherServer(t *testing.T) {
	drv := openStore(t)
	_, err := ImportCypher(context.Background(), drv, []string{"CREATE (a)"})
	assert.ErrorIs(t, err, driver.ErrUnsupportedStatement)
}

func TestReloadReplacesFixtureLabels(t *testing.T) {
	drv := openStore(t)
	ctx := context.Background()

	f, err := NewYAMLCodec().Decode(strings.NewReader(sample))
	require.NoError(t, err)
	_, err = Import(ctx, drv, f)
	require.NoError(t, err)
	_, err = drv.Request(ctx, cypher.CreateNode{Labels: []string{"Orbit"}, Properties: map[string]any{"name": "LEO"}})
	require.NoError(t, err)

	f.Nodes[1].Properties["name"] = "Sputnik 2"
	_, err = Reload(ctx, drv, f)
	require.NoError(t, err)

	exported, err := Export(ctx, drv, "Satellite")
	require.NoError(t, err)
	require.Len(t, exported.Nodes, 1)
	assert.Equal(t, "Sputnik 2", exported.Nodes[0].Properties["name"])

	resp, err := drv.Request(ctx, cypher.CountQuery{Label: "Orbit"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Rows[0][cypher.ColumnCount])
}

func TestWatcherRunsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	var changes atomic.Int32
	w := NewWatcher(path, func(context.Context) { changes.Add(1) }, nil).WithDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// keep writing until the watcher is registered and reacts
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(sample), 0o600)
		return changes.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
