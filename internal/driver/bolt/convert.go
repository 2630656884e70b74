package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"graphogm/internal/driver"
	"graphogm/internal/model"
)

// collect drains result into a response
func collect(ctx context.Context, result neo4j.ResultWithContext) (*model.Response, error) {
	keys, err := result.Keys()
	if err != nil {
		return nil, convertError(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, convertError(err)
	}

	resp := &model.Response{
		Columns: keys,
		Rows:    make([]map[string]any, 0, len(records)),
	}
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = convertValue(record.Values[i])
		}
		resp.Rows = append(resp.Rows, row)
	}

	if summary != nil {
		if counters := summary.Counters(); counters != nil {
			resp.Statistics = convertCounters(counters)
		}
		for _, n := range summary.Notifications() {
			resp.Notifications = append(resp.Notifications, convertNotification(n))
		}
	}
	return resp, nil
}

// convertError maps server failures onto driver.CypherError
func convertError(err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return driver.NewCypherError(neoErr.Code, neoErr.Msg)
	}
	return err
}

// convertValue turns driver graph types into model types, recursively
func convertValue(v any) any {
	switch v := v.(type) {
	case neo4j.Node:
		return convertNode(v)
	case neo4j.Relationship:
		return convertRelationship(v)
	case neo4j.Path:
		path := model.Path{
			Nodes:         make([]model.Node, 0, len(v.Nodes)),
			Relationships: make([]model.Relationship, 0, len(v.Relationships)),
		}
		for _, n := range v.Nodes {
			path.Nodes = append(path.Nodes, convertNode(n))
		}
		for _, r := range v.Relationships {
			path.Relationships = append(path.Relationships, convertRelationship(r))
		}
		return path
	case neo4j.Date:
		return time.Time(v)
	case neo4j.LocalDateTime:
		return time.Time(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		return convertMap(v)
	}
	return v
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = convertValue(v)
	}
	return out
}

func convertNode(n neo4j.Node) model.Node {
	return model.Node{
		ID:         n.Id, //nolint:staticcheck // numeric ids are what the mapper keys on
		Labels:     n.Labels,
		Properties: convertMap(n.Props),
	}
}

func convertRelationship(r neo4j.Relationship) model.Relationship {
	return model.Relationship{
		ID:         r.Id,      //nolint:staticcheck
		StartID:    r.StartId, //nolint:staticcheck
		EndID:      r.EndId,   //nolint:staticcheck
		Type:       r.Type,
		Properties: convertMap(r.Props),
	}
}

func convertCounters(c neo4j.Counters) model.QueryStatistics {
	return model.QueryStatistics{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
		LabelsAdded:          c.LabelsAdded(),
		LabelsRemoved:        c.LabelsRemoved(),
		ConstraintsAdded:     c.ConstraintsAdded(),
		ConstraintsRemoved:   c.ConstraintsRemoved(),
	}
}

// notification is the part of neo4j.Notification read here
type notification interface {
	Code() string
	Title() string
	Description() string
	Position() neo4j.InputPosition
	RawSeverityLevel() string
	RawCategory() string
}

// convertNotification copies a server notification; servers may omit the
// position, which leaves Position nil
func convertNotification(n notification) model.Notification {
	out := model.Notification{
		Code:        n.Code(),
		Title:       n.Title(),
		Description: n.Description(),
		Severity:    n.RawSeverityLevel(),
		Category:    n.RawCategory(),
	}
	if pos := n.Position(); pos != nil {
		out.Position = &model.InputPosition{
			Offset: pos.Offset(),
			Line:   pos.Line(),
			Column: pos.Column(),
		}
	}
	return out
}
