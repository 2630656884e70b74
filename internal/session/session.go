package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"graphogm/internal/cypher"
	"graphogm/internal/driver"
	"graphogm/internal/metadata"
	"graphogm/internal/model"
)

var (
	// ErrNotFound is returned by Load when no node has the requested id
	ErrNotFound = errors.New("entity not found")
	// ErrTransactionInProgress is returned when a session already has an
	// open transaction
	ErrTransactionInProgress = errors.New("transaction already in progress")
	// ErrTransactionFailed is returned by requests made after an earlier
	// request in the same transaction failed, and by Commit of such a
	// transaction
	ErrTransactionFailed = errors.New("transaction failed")
)

// Session is a unit of work over a Factory's driver
type Session struct {
	id       string
	factory  *Factory
	registry *metadata.Registry
	logger   *slog.Logger
	mapping  *mappingContext
	tx       *Transaction
}

// ID identifies the session in logs and events
func (s *Session) ID() string {
	return s.id
}

// runner returns the open transaction, or the driver for autocommit work
func (s *Session) runner() driver.Runner {
	if s.tx != nil && s.tx.status == StatusOpen {
		return s.tx.tx
	}
	return s.factory.driver
}

// request runs stmt and logs the notifications the server attached. An
// error inside a transaction fails it: later requests are refused and
// Commit rolls back.
func (s *Session) request(ctx context.Context, stmt cypher.Statement) (*model.Response, error) {
	tx := s.Transaction()
	if tx != nil && tx.failure != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, tx.failure)
	}
	resp, err := s.runner().Request(ctx, stmt)
	if err != nil {
		if tx != nil {
			tx.fail(err)
		}
		return nil, err
	}
	s.logNotifications(ctx, resp.Notifications)
	return resp, nil
}

// logNotifications reports server notifications; they are diagnostics and
// never fail the request
func (s *Session) logNotifications(ctx context.Context, notifications []model.Notification) {
	for _, n := range notifications {
		attrs := []slog.Attr{
			slog.String("code", n.Code),
			slog.String("title", n.Title),
			slog.String("description", n.Description),
			slog.String("severity", n.Severity),
		}
		if n.Position != nil {
			attrs = append(attrs,
				slog.Int("line", n.Position.Line),
				slog.Int("column", n.Position.Column),
				slog.Int("offset", n.Position.Offset))
		}

		level := slog.LevelInfo
		if n.IsWarning() {
			level = slog.LevelWarn
		}
		s.logger.LogAttrs(ctx, level, "query notification", attrs...)
	}
}

// LoadAll fills dst, a *[]*T for a registered T, with the matching entities
func (s *Session) LoadAll(ctx context.Context, dst any, opts ...Option) error {
	slice, class, err := s.sliceTarget(dst)
	if err != nil {
		return err
	}
	o := buildOptions(s.factory.cfg.LoadDepth, opts)

	filters, err := s.filterValues(class, o.filters)
	if err != nil {
		return err
	}
	q := cypher.NodeQuery{
		Label:   class.Label,
		Filters: filters,
		Sort:    o.sort,
		Page:    o.page,
		Depth:   o.depth,
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	resp, err := s.request(ctx, q)
	if err != nil {
		return err
	}
	entities, err := s.mapResponse(resp, class, o.depth)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", class.Label, err)
	}

	out := reflect.MakeSlice(slice.Type(), 0, len(entities))
	for _, e := range entities {
		out = reflect.Append(out, e)
	}
	slice.Set(out)
	return nil
}

// Load fills dst, a **T for a registered T, with the entity whose node id
// is id
func (s *Session) Load(ctx context.Context, dst any, id int64, opts ...Option) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return fmt.Errorf("%w: Load needs a **T, got %T", metadata.ErrNotEntity, dst)
	}
	class, err := s.registry.ClassForType(rv.Elem().Type().Elem())
	if err != nil {
		return err
	}
	o := buildOptions(s.factory.cfg.LoadDepth, opts)

	q := cypher.NodeQuery{Label: class.Label, IDs: []int64{id}, Depth: o.depth}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	resp, err := s.request(ctx, q)
	if err != nil {
		return err
	}
	entities, err := s.mapResponse(resp, class, o.depth)
	if err != nil {
		return fmt.Errorf("failed to map %s: %w", class.Label, err)
	}
	if len(entities) == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, class.Label, id)
	}
	rv.Elem().Set(entities[0])
	return nil
}

// Count returns the number of nodes of sample's class matching filters
func (s *Session) Count(ctx context.Context, sample any, filters ...cypher.Filter) (int64, error) {
	class, err := s.registry.ClassFor(sample)
	if err != nil {
		return 0, err
	}
	converted, err := s.filterValues(class, filters)
	if err != nil {
		return 0, err
	}
	if err := converted.Validate(); err != nil {
		return 0, fmt.Errorf("invalid filters: %w", err)
	}

	resp, err := s.request(ctx, cypher.CountQuery{Label: class.Label, Filters: converted})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 {
		return 0, nil
	}
	count, ok := resp.Rows[0][cypher.ColumnCount].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count %T", resp.Rows[0][cypher.ColumnCount])
	}
	return count, nil
}

// Delete removes entity's node and its relationships; unsaved entities are
// ignored
func (s *Session) Delete(ctx context.Context, entity any) error {
	class, err := s.registry.ClassFor(entity)
	if err != nil {
		return err
	}
	if _, err := class.Value(entity); err != nil {
		return err
	}
	id, ok := class.IDOf(entity)
	if !ok {
		return nil
	}

	s.publish(EventPreDelete, class, entity)
	if _, err := s.request(ctx, cypher.DeleteNode{ID: id}); err != nil {
		return err
	}
	s.mapping.forget(id)
	class.SetID(entity, nil)
	if tx := s.Transaction(); tx != nil {
		tx.forget(class, entity, id)
	}
	s.publish(EventPostDelete, class, entity)
	return nil
}

// DeleteAll removes every node of sample's class
func (s *Session) DeleteAll(ctx context.Context, sample any) error {
	class, err := s.registry.ClassFor(sample)
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, cypher.DeleteByLabel{Label: class.Label}); err != nil {
		return err
	}
	tx := s.Transaction()
	for id, c := range s.mapping.classes {
		if c != class {
			continue
		}
		entity := s.mapping.entities[id].Interface()
		class.SetID(entity, nil)
		s.mapping.forget(id)
		if tx != nil {
			tx.forget(class, entity, id)
		}
	}
	return nil
}

// Result is the outcome of a caller-supplied query; nodes of registered
// classes are replaced by their entities
type Result struct {
	Columns    []string
	Rows       []map[string]any
	Statistics model.QueryStatistics
}

// Query runs caller-supplied Cypher
func (s *Session) Query(ctx context.Context, text string, params map[string]any) (*Result, error) {
	resp, err := s.request(ctx, cypher.RawQuery{Text: text, Params: params})
	if err != nil {
		return nil, err
	}

	m := newMapper(s)
	result := &Result{
		Columns:    resp.Columns,
		Rows:       make([]map[string]any, 0, len(resp.Rows)),
		Statistics: resp.Statistics,
	}
	for _, row := range resp.Rows {
		mapped := make(map[string]any, len(row))
		for k, v := range row {
			mapped[k], err = m.value(v)
			if err != nil {
				return nil, err
			}
		}
		result.Rows = append(result.Rows, mapped)
	}
	return result, nil
}

// Path is a path returned by Query; Nodes holds an entity for each node of
// a registered class and the model.Node otherwise
type Path struct {
	Nodes         []any
	Relationships []model.Relationship
}

// value replaces nodes of registered classes with entities, looking inside
// lists, maps and paths
func (m *mapper) value(v any) (any, error) {
	switch v := v.(type) {
	case model.Node:
		e, err := m.entity(v, nil)
		if err != nil || !e.IsValid() {
			return v, err
		}
		return e.Interface(), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			mapped, err := m.value(item)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			mapped, err := m.value(item)
			if err != nil {
				return nil, err
			}
			out[k] = mapped
		}
		return out, nil
	case model.Path:
		p := Path{Nodes: make([]any, len(v.Nodes)), Relationships: v.Relationships}
		for i, n := range v.Nodes {
			mapped, err := m.value(n)
			if err != nil {
				return nil, err
			}
			p.Nodes[i] = mapped
		}
		return p, nil
	}
	return v, nil
}

// QueryForObjects runs caller-supplied Cypher and fills dst, a *[]*T, with
// the distinct T entities among the returned nodes; relationship fields
// are not hydrated
func (s *Session) QueryForObjects(ctx context.Context, dst any, text string, params map[string]any) error {
	slice, class, err := s.sliceTarget(dst)
	if err != nil {
		return err
	}
	resp, err := s.request(ctx, cypher.RawQuery{Text: text, Params: params})
	if err != nil {
		return err
	}

	m := newMapper(s)
	out := reflect.MakeSlice(slice.Type(), 0, len(resp.Rows))
	for _, n := range resp.Graph().Nodes {
		if c, ok := s.registry.ClassForLabels(n.Labels); !ok || c != class {
			continue
		}
		e, err := m.entity(n, class)
		if err != nil {
			return err
		}
		out = reflect.Append(out, e)
	}
	slice.Set(out)
	return nil
}

// Clear forgets every entity the session has seen
func (s *Session) Clear() {
	s.mapping = newMappingContext()
}

// sliceTarget checks dst is a *[]*T and returns the slice and T's class
func (s *Session) sliceTarget(dst any) (reflect.Value, *metadata.ClassInfo, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice ||
		rv.Elem().Type().Elem().Kind() != reflect.Pointer {
		return reflect.Value{}, nil, fmt.Errorf("%w: need a *[]*T, got %T", metadata.ErrNotEntity, dst)
	}
	class, err := s.registry.ClassForType(rv.Elem().Type().Elem().Elem())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return rv.Elem(), class, nil
}

// filterValues converts filter values into their graph form
func (s *Session) filterValues(class *metadata.ClassInfo, filters cypher.Filters) (cypher.Filters, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	converted := make(cypher.Filters, len(filters))
	for i, f := range filters {
		value, err := class.PropertyValue(f.Property, f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to convert filter on %s: %w", f.Property, err)
		}
		f.Value = value
		converted[i] = f
	}
	return converted, nil
}

func (s *Session) publish(t EventType, class *metadata.ClassInfo, entity any) {
	s.factory.events.Publish(Event{Type: t, Session: s.id, Label: class.Label, Entity: entity})
}
