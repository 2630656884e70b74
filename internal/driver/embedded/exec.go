package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/model"
)

// execute runs one statement inside q
func execute(ctx context.Context, q querier, stmt cypher.Statement) (*model.Response, error) {
	switch s := stmt.(type) {
	case cypher.NodeQuery:
		return queryNodes(ctx, q, s)
	case *cypher.NodeQuery:
		return queryNodes(ctx, q, *s)
	case cypher.CountQuery:
		return countNodes(ctx, q, s)
	case cypher.CreateNode:
		return createNode(ctx, q, s)
	case cypher.UpdateNode:
		return updateNode(ctx, q, s)
	case cypher.DeleteNode:
		return deleteNode(ctx, q, s)
	case cypher.DeleteByLabel:
		return deleteByLabel(ctx, q, s)
	case cypher.CreateRelationship:
		return createRelationship(ctx, q, s)
	case cypher.DeleteRelationship:
		return deleteRelationship(ctx, q, s)
	case cypher.CreateUniqueConstraint:
		return createConstraint(ctx, q, s)
	case cypher.ListConstraints:
		return listConstraints(ctx, q)
	}
	return nil, fmt.Errorf("%w: %T", driver.ErrUnsupportedStatement, stmt)
}

// ============================================================================
// Reads
// ============================================================================

func queryNodes(ctx context.Context, q querier, s cypher.NodeQuery) (*model.Response, error) {
	if err := s.Validate(); err != nil {
		return nil, driver.NewCypherError(driver.CodeSyntaxError, err.Error())
	}

	var b selectBuilder
	b.write("SELECT " + nodeColumns)
	b.from(s.Label)
	if err := b.where(s.IDs, s.Filters); err != nil {
		return nil, driver.NewCypherError(driver.CodeSyntaxError, err.Error())
	}
	b.orderBy(s.Sort)
	b.page(s.Page)

	rows, err := q.QueryContext(ctx, b.sql.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	var roots []model.Node
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toModel()
		if err != nil {
			rows.Close()
			return nil, err
		}
		roots = append(roots, node)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	resp := &model.Response{
		Columns: []string{cypher.ColumnNode, cypher.ColumnPaths},
		Rows:    make([]map[string]any, 0, len(roots)),
	}
	for _, root := range roots {
		root.Labels, err = loadLabels(ctx, q, root.ID)
		if err != nil {
			return nil, err
		}
		paths, err := expand(ctx, q, root, s.Depth)
		if err != nil {
			return nil, err
		}
		resp.Rows = append(resp.Rows, map[string]any{
			cypher.ColumnNode:  root,
			cypher.ColumnPaths: paths,
		})
	}

	resp.Notifications, err = unknownPropertyKeys(ctx, q, append(s.Filters.Properties(), s.Sort.Properties()...))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// expand walks breadth first from root up to depth hops (unbounded when
// negative) and returns the nodes and relationships found
func expand(ctx context.Context, q querier, root model.Node, depth int) ([]any, error) {
	seenNodes := map[int64]bool{root.ID: true}
	seenRels := make(map[int64]bool)
	found := []any{root}

	frontier := []int64{root.ID}
	for hop := 0; len(frontier) > 0 && (depth < 0 || hop < depth); hop++ {
		var next []int64
		for _, id := range frontier {
			rels, err := loadRelationshipsOf(ctx, q, id)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if seenRels[rel.ID] {
					continue
				}
				seenRels[rel.ID] = true
				found = append(found, rel)

				other := rel.Other(id)
				if seenNodes[other] {
					continue
				}
				seenNodes[other] = true
				node, ok, err := loadNode(ctx, q, other)
				if err != nil {
					return nil, err
				}
				if ok {
					found = append(found, node)
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return found, nil
}

func countNodes(ctx context.Context, q querier, s cypher.CountQuery) (*model.Response, error) {
	if err := s.Filters.Validate(); err != nil {
		return nil, driver.NewCypherError(driver.CodeSyntaxError, err.Error())
	}

	var b selectBuilder
	b.write("SELECT COUNT(*)")
	b.from(s.Label)
	if err := b.where(nil, s.Filters); err != nil {
		return nil, driver.NewCypherError(driver.CodeSyntaxError, err.Error())
	}

	var count int64
	if err := q.QueryRowContext(ctx, b.sql.String(), b.args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count nodes: %w", err)
	}

	notifications, err := unknownPropertyKeys(ctx, q, s.Filters.Properties())
	if err != nil {
		return nil, err
	}
	return &model.Response{
		Columns:       []string{cypher.ColumnCount},
		Rows:          []map[string]any{{cypher.ColumnCount: count}},
		Notifications: notifications,
	}, nil
}

func listConstraints(ctx context.Context, q querier) (*model.Response, error) {
	rows, err := q.QueryContext(ctx, `SELECT label, property FROM constraints ORDER BY label, property`)
	if err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	defer rows.Close()

	resp := &model.Response{Columns: []string{cypher.ColumnLabel, cypher.ColumnProperty}}
	for rows.Next() {
		var label, property string
		if err := rows.Scan(&label, &property); err != nil {
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		resp.Rows = append(resp.Rows, map[string]any{cypher.ColumnLabel: label, cypher.ColumnProperty: property})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constraints: %w", err)
	}
	return resp, nil
}

// unknownPropertyKeys warns about keys no node or relationship carries,
// the way a server does for a misspelt property. The warning has no
// position since no statement text was parsed.
func unknownPropertyKeys(ctx context.Context, q querier, keys []string) ([]model.Notification, error) {
	var notifications []model.Notification
	seen := make(map[string]bool)
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		exists, err := propertyKeyExists(ctx, q, key)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		notifications = append(notifications, model.Notification{
			Code:     driver.CodeUnknownPropertyKey,
			Title:    "The provided property key is not in the database",
			Severity: model.SeverityWarning,
			Category: "UNRECOGNIZED",
			Description: "One of the property names in your query is not available in the database, " +
				"make sure you didn't misspell it or that the label is available when you run this " +
				"statement in your application (the missing property name is: " + key + ")",
		})
	}
	return notifications, nil
}

// ============================================================================
// Node Writes
// ============================================================================

func createNode(ctx context.Context, q querier, s cypher.CreateNode) (*model.Response, error) {
	if err := checkUnique(ctx, q, 0, s.Labels, s.Properties); err != nil {
		return nil, err
	}

	propsJSON, err := marshalProperties(s.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	res, err := q.ExecContext(ctx, `INSERT INTO nodes (properties) VALUES (?)`, propsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read node id: %w", err)
	}

	labels := dedupe(s.Labels)
	for _, label := range labels {
		if _, err := q.ExecContext(ctx, `INSERT INTO node_labels (node_id, label) VALUES (?, ?)`, id, label); err != nil {
			return nil, fmt.Errorf("failed to insert label: %w", err)
		}
	}

	return &model.Response{
		Columns: []string{cypher.ColumnID},
		Rows:    []map[string]any{{cypher.ColumnID: id}},
		Statistics: model.QueryStatistics{
			NodesCreated:  1,
			LabelsAdded:   len(labels),
			PropertiesSet: len(s.Properties),
		},
	}, nil
}

func updateNode(ctx context.Context, q querier, s cypher.UpdateNode) (*model.Response, error) {
	current, ok, err := loadNode(ctx, q, s.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &model.Response{Columns: []string{cypher.ColumnID}}, nil
	}
	if err := checkUnique(ctx, q, s.ID, current.Labels, s.Properties); err != nil {
		return nil, err
	}

	propsJSON, err := marshalProperties(s.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE nodes SET properties = ? WHERE id = ?`, propsJSON, s.ID); err != nil {
		return nil, fmt.Errorf("failed to update node: %w", err)
	}

	set := len(s.Properties)
	for k := range current.Properties {
		if _, kept := s.Properties[k]; !kept {
			set++
		}
	}
	return &model.Response{
		Columns:    []string{cypher.ColumnID},
		Rows:       []map[string]any{{cypher.ColumnID: s.ID}},
		Statistics: model.QueryStatistics{PropertiesSet: set},
	}, nil
}

func deleteNode(ctx context.Context, q querier, s cypher.DeleteNode) (*model.Response, error) {
	stats, err := removeNode(ctx, q, s.ID)
	if err != nil {
		return nil, err
	}
	return &model.Response{Statistics: stats}, nil
}

func deleteByLabel(ctx context.Context, q querier, s cypher.DeleteByLabel) (*model.Response, error) {
	var b selectBuilder
	b.write("SELECT n.id")
	b.from(s.Label)
	rows, err := q.QueryContext(ctx, b.sql.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	resp := &model.Response{}
	for _, id := range ids {
		stats, err := removeNode(ctx, q, id)
		if err != nil {
			return nil, err
		}
		resp.Statistics.Add(stats)
	}
	return resp, nil
}

// removeNode detaches and deletes a node
func removeNode(ctx context.Context, q querier, id int64) (model.QueryStatistics, error) {
	var stats model.QueryStatistics

	res, err := q.ExecContext(ctx, `DELETE FROM relationships WHERE start_id = ? OR end_id = ?`, id, id)
	if err != nil {
		return stats, fmt.Errorf("failed to delete relationships: %w", err)
	}
	rels, _ := res.RowsAffected()
	stats.RelationshipsDeleted = int(rels)

	if _, err := q.ExecContext(ctx, `DELETE FROM node_labels WHERE node_id = ?`, id); err != nil {
		return stats, fmt.Errorf("failed to delete labels: %w", err)
	}
	res, err = q.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return stats, fmt.Errorf("failed to delete node: %w", err)
	}
	nodes, _ := res.RowsAffected()
	stats.NodesDeleted = int(nodes)
	return stats, nil
}

// checkUnique enforces unique constraints for a node with labels and
// props; self is the node being updated, 0 for a new node
func checkUnique(ctx context.Context, q querier, self int64, labels []string, props map[string]any) error {
	for _, label := range dedupe(labels) {
		rows, err := q.QueryContext(ctx, `SELECT property FROM constraints WHERE label = ? ORDER BY property`, label)
		if err != nil {
			return fmt.Errorf("failed to query constraints: %w", err)
		}
		var properties []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan constraint: %w", err)
			}
			properties = append(properties, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating constraints: %w", err)
		}

		for _, property := range properties {
			value, ok := props[property]
			if !ok || value == nil {
				continue
			}
			var existing int64
			err := q.QueryRowContext(ctx, `
				SELECT n.id FROM nodes n
				JOIN node_labels l ON l.node_id = n.id AND l.label = ?
				WHERE json_extract(n.properties, ?) = ? AND n.id <> ?
				LIMIT 1
			`, label, jsonPath(property), sqlValue(value), self).Scan(&existing)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to check constraint: %w", err)
			}
			return driver.NewCypherError(driver.CodeConstraintValidationFailed,
				fmt.Sprintf("Node(%d) already exists with label `%s` and property `%s` = %s",
					existing, label, property, formatValue(value)))
		}
	}
	return nil
}

// ============================================================================
// Relationship Writes
// ============================================================================

func createRelationship(ctx context.Context, q querier, s cypher.CreateRelationship) (*model.Response, error) {
	resp := &model.Response{Columns: []string{cypher.ColumnID}}

	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id IN (?, ?)`, s.StartID, s.EndID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to look up endpoints: %w", err)
	}
	if count < 2 && !(s.StartID == s.EndID && count == 1) {
		return resp, nil
	}

	var row relationshipRow
	err := q.QueryRowContext(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships r
		WHERE r.start_id = ? AND r.end_id = ? AND r.type = ?
		ORDER BY r.id LIMIT 1
	`, s.StartID, s.EndID, s.Type).Scan(row.scanArgs()...)

	switch {
	case err == sql.ErrNoRows:
		propsJSON, err := marshalProperties(s.Properties)
		if err != nil {
			return nil, fmt.Errorf("marshal properties: %w", err)
		}
		res, err := q.ExecContext(ctx, `
			INSERT INTO relationships (type, start_id, end_id, properties) VALUES (?, ?, ?, ?)
		`, s.Type, s.StartID, s.EndID, propsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to insert relationship: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read relationship id: %w", err)
		}
		resp.Rows = []map[string]any{{cypher.ColumnID: id}}
		resp.Statistics = model.QueryStatistics{RelationshipsCreated: 1, PropertiesSet: len(s.Properties)}

	case err != nil:
		return nil, fmt.Errorf("failed to query relationship: %w", err)

	default:
		existing, err := row.toModel()
		if err != nil {
			return nil, err
		}
		if len(s.Properties) > 0 {
			for k, v := range s.Properties {
				existing.Properties[k] = v
			}
			propsJSON, err := marshalProperties(existing.Properties)
			if err != nil {
				return nil, fmt.Errorf("marshal properties: %w", err)
			}
			if _, err := q.ExecContext(ctx, `UPDATE relationships SET properties = ? WHERE id = ?`, propsJSON, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to update relationship: %w", err)
			}
		}
		resp.Rows = []map[string]any{{cypher.ColumnID: existing.ID}}
		resp.Statistics = model.QueryStatistics{PropertiesSet: len(s.Properties)}
	}
	return resp, nil
}

func deleteRelationship(ctx context.Context, q querier, s cypher.DeleteRelationship) (*model.Response, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM relationships WHERE start_id = ? AND end_id = ? AND type = ?
	`, s.StartID, s.EndID, s.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to delete relationship: %w", err)
	}
	n, _ := res.RowsAffected()
	return &model.Response{Statistics: model.QueryStatistics{RelationshipsDeleted: int(n)}}, nil
}

// ============================================================================
// Schema
// ============================================================================

func createConstraint(ctx context.Context, q querier, s cypher.CreateUniqueConstraint) (*model.Response, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM constraints WHERE label = ? AND property = ?)
	`, s.Label, s.Property).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to query constraints: %w", err)
	}
	if exists {
		return &model.Response{}, nil
	}

	var (
		value     any
		duplicate int
	)
	err := q.QueryRowContext(ctx, `
		SELECT json_extract(n.properties, ?) AS v, COUNT(*) AS c
		FROM nodes n
		JOIN node_labels l ON l.node_id = n.id AND l.label = ?
		WHERE json_extract(n.properties, ?) IS NOT NULL
		GROUP BY v HAVING c > 1
		LIMIT 1
	`, jsonPath(s.Property), s.Label, jsonPath(s.Property)).Scan(&value, &duplicate)
	if err == nil {
		return nil, driver.NewCypherError(driver.CodeConstraintCreationFailed,
			fmt.Sprintf("Unable to create Constraint( type='UNIQUENESS', schema=(:%s {%s}) ): "+
				"%d nodes with label `%s` share the property `%s` = %s",
				s.Label, s.Property, duplicate, s.Label, s.Property, formatValue(value)))
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing values: %w", err)
	}

	if _, err := q.ExecContext(ctx, `INSERT INTO constraints (label, property) VALUES (?, ?)`, s.Label, s.Property); err != nil {
		return nil, fmt.Errorf("failed to insert constraint: %w", err)
	}
	return &model.Response{Statistics: model.QueryStatistics{ConstraintsAdded: 1}}, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
