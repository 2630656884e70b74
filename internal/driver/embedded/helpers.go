package embedded

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"graphogm/internal/model"
)

// querier is satisfied by *sql.Tx; every statement runs inside one
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ============================================================================
// JSON Property Helpers
// ============================================================================

// marshalProperties encodes a property map for the properties column
func marshalProperties(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalProperties decodes the properties column; integers come back as
// int64 and other numbers as float64
func unmarshalProperties(data string) (map[string]any, error) {
	props := make(map[string]any)
	if data == "" {
		return props, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&props); err != nil {
		return nil, err
	}
	for k, v := range props {
		props[k] = normalize(v)
	}
	return props, nil
}

func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalize(v[k])
		}
		return v
	}
	return v
}

// jsonPath addresses a top-level property key
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// sqlValue converts a property value into something SQLite compares the
// same way json_extract returns it
func sqlValue(v any) any {
	switch v := v.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case []any, map[string]any, []string:
		data, _ := json.Marshal(v)
		return string(data)
	}
	return v
}

// formatValue renders a value the way constraint messages quote it
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprint(v)
}

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds the columns of a node query
type nodeRow struct {
	ID             int64
	PropertiesJSON string
}

// scanArgs returns pointers matching nodeColumns
func (r *nodeRow) scanArgs() []any {
	return []any{&r.ID, &r.PropertiesJSON}
}

// toModel converts the row; labels are loaded separately
func (r *nodeRow) toModel() (model.Node, error) {
	props, err := unmarshalProperties(r.PropertiesJSON)
	if err != nil {
		return model.Node{}, fmt.Errorf("unmarshal properties of node %d: %w", r.ID, err)
	}
	return model.Node{ID: r.ID, Properties: props}, nil
}

const nodeColumns = `n.id, n.properties`

// ============================================================================
// Relationship Row Scanner
// ============================================================================

// relationshipRow holds the columns of a relationship query
type relationshipRow struct {
	ID             int64
	Type           string
	StartID        int64
	EndID          int64
	PropertiesJSON string
}

// scanArgs returns pointers matching relationshipColumns
func (r *relationshipRow) scanArgs() []any {
	return []any{&r.ID, &r.Type, &r.StartID, &r.EndID, &r.PropertiesJSON}
}

// toModel converts the row
func (r *relationshipRow) toModel() (model.Relationship, error) {
	props, err := unmarshalProperties(r.PropertiesJSON)
	if err != nil {
		return model.Relationship{}, fmt.Errorf("unmarshal properties of relationship %d: %w", r.ID, err)
	}
	return model.Relationship{
		ID:         r.ID,
		Type:       r.Type,
		StartID:    r.StartID,
		EndID:      r.EndID,
		Properties: props,
	}, nil
}

const relationshipColumns = `r.id, r.type, r.start_id, r.end_id, r.properties`

// ============================================================================
// Loaders
// ============================================================================

// loadNode reads one node with its labels; ok is false when it does not exist
func loadNode(ctx context.Context, q querier, id int64) (model.Node, bool, error) {
	var row nodeRow
	err := q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes n WHERE n.id = ?`, id).Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return model.Node{}, false, nil
	}
	if err != nil {
		return model.Node{}, false, fmt.Errorf("failed to query node: %w", err)
	}
	node, err := row.toModel()
	if err != nil {
		return model.Node{}, false, err
	}
	node.Labels, err = loadLabels(ctx, q, id)
	if err != nil {
		return model.Node{}, false, err
	}
	return node, true, nil
}

// loadLabels returns the sorted labels of a node
func loadLabels(ctx context.Context, q querier, id int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT label FROM node_labels WHERE node_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := make([]string, 0, 1)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}
	sort.Strings(labels)
	return labels, nil
}

// loadRelationshipsOf returns every relationship touching a node, ordered by id
func loadRelationshipsOf(ctx context.Context, q querier, id int64) ([]model.Relationship, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships r
		WHERE r.start_id = ? OR r.end_id = ?
		ORDER BY r.id
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var row relationshipRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rel, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}
	return rels, nil
}

// propertyKeyExists reports whether any node or relationship carries key
func propertyKeyExists(ctx context.Context, q querier, key string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM nodes WHERE json_type(properties, ?) IS NOT NULL)
			OR EXISTS(SELECT 1 FROM relationships WHERE json_type(properties, ?) IS NOT NULL)
	`, jsonPath(key), jsonPath(key)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up property key: %w", err)
	}
	return exists, nil
}
