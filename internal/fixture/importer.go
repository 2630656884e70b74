package fixture

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/model"
)

// ReadFile decodes the fixture at path, choosing the codec by extension
func ReadFile(fsys fs.FS, path string) (*Fixture, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	file, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer file.Close()
	return codec.Decode(file)
}

// Import creates the fixture's nodes and relationships in one transaction
// and returns the id assigned to each node key
func Import(ctx context.Context, drv driver.Driver, f *Fixture) (map[string]int64, error) {
	return inTransaction(ctx, drv, f, func(tx driver.Transaction) (map[string]int64, error) {
		return create(ctx, tx, f)
	})
}

// Reload replaces every node carrying one of the fixture's labels with the
// fixture's content, in one transaction
func Reload(ctx context.Context, drv driver.Driver, f *Fixture) (map[string]int64, error) {
	return inTransaction(ctx, drv, f, func(tx driver.Transaction) (map[string]int64, error) {
		for _, label := range f.Labels() {
			if _, err := tx.Request(ctx, cypher.DeleteByLabel{Label: label}); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", label, err)
			}
		}
		return create(ctx, tx, f)
	})
}

func inTransaction(ctx context.Context, drv driver.Driver, f *Fixture, fn func(driver.Transaction) (map[string]int64, error)) (map[string]int64, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}

	tx, err := drv.BeginTransaction(ctx, driver.AccessModeWrite)
	if err != nil {
		return nil, err
	}
	ids, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit fixture: %w", err)
	}
	return ids, nil
}

func create(ctx context.Context, r driver.Runner, f *Fixture) (map[string]int64, error) {
	ids := make(map[string]int64, len(f.Nodes))
	for _, n := range f.Nodes {
		resp, err := r.Request(ctx, cypher.CreateNode{Labels: n.Labels, Properties: n.Properties})
		if err != nil {
			return nil, fmt.Errorf("failed to create node %q: %w", n.Key, err)
		}
		id, err := firstID(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %q: %w", n.Key, err)
		}
		ids[n.Key] = id
	}
	for _, rel := range f.Relationships {
		_, err := r.Request(ctx, cypher.CreateRelationship{
			StartID:    ids[rel.From],
			EndID:      ids[rel.To],
			Type:       rel.Type,
			Properties: rel.Properties,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to link %q to %q: %w", rel.From, rel.To, err)
		}
	}
	return ids, nil
}

func firstID(resp *model.Response) (int64, error) {
	if len(resp.Rows) == 0 {
		return 0, fmt.Errorf("no id returned")
	}
	id, ok := resp.Rows[0][cypher.ColumnID].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected id %T", resp.Rows[0][cypher.ColumnID])
	}
	return id, nil
}

// Export reads every node with the given label, or every node when label
// is empty, together with the relationships between them
func Export(ctx context.Context, r driver.Runner, label string) (*Fixture, error) {
	resp, err := r.Request(ctx, cypher.NodeQuery{Label: label, Depth: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	g := resp.Graph()

	roots := make(map[int64]bool, len(resp.Rows))
	for _, row := range resp.Rows {
		if n, ok := row[cypher.ColumnNode].(model.Node); ok {
			roots[n.ID] = true
		}
	}

	f := &Fixture{}
	nodes := make([]model.Node, 0, len(roots))
	for _, n := range g.Nodes {
		if roots[n.ID] {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		f.Nodes = append(f.Nodes, Node{Key: key(n.ID), Labels: n.Labels, Properties: n.Properties})
	}

	rels := make([]model.Relationship, 0, len(g.Relationships))
	for _, rel := range g.Relationships {
		if roots[rel.StartID] && roots[rel.EndID] {
			rels = append(rels, rel)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	for _, rel := range rels {
		f.Relationships = append(f.Relationships, Relationship{
			From:       key(rel.StartID),
			To:         key(rel.EndID),
			Type:       rel.Type,
			Properties: rel.Properties,
		})
	}
	return f, nil
}

func key(id int64) string {
	return "n" + strconv.FormatInt(id, 10)
}
