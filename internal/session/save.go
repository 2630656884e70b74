package session

import (
	"context"
	"fmt"
	"reflect"

	"graphogm/internal/cypher"
	"graphogm/internal/metadata"
)

// Save persists entity and, up to the given depth (unbounded by default),
// the entities it references
func (s *Session) Save(ctx context.Context, entity any, opts ...Option) error {
	class, err := s.registry.ClassFor(entity)
	if err != nil {
		return err
	}
	ptr := reflect.ValueOf(entity)
	if _, err := class.Value(entity); err != nil {
		return err
	}
	o := buildOptions(cypher.Unbounded, opts)

	return s.inTransaction(ctx, func(ctx context.Context, run *saveRun) error {
		if err := run.visit(ctx, ptr, class, o.depth); err != nil {
			return err
		}
		return run.deleteStale(ctx)
	})
}

// inTransaction runs fn in the open transaction, or in an implicit one that
// commits on success; on failure the mapping context is restored and
// entities created by fn are marked new again
func (s *Session) inTransaction(ctx context.Context, fn func(context.Context, *saveRun) error) error {
	run := &saveRun{
		s:       s,
		visited: make(map[uintptr]bool),
		desired: make(map[relKey]bool),
		stale:   make(map[relKey]bool),
	}
	saved := s.mapping.clone()

	fail := func(err error) error {
		run.reset()
		s.mapping = saved
		return err
	}

	if s.tx != nil && s.tx.status == StatusOpen {
		if err := fn(ctx, run); err != nil {
			return fail(err)
		}
		s.tx.created = append(s.tx.created, run.created...)
		return nil
	}

	tx, err := s.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, run); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("implicit rollback failed", "error", rbErr)
		}
		return fail(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(err)
	}
	return nil
}

// created is an entity that received its id during a save
type created struct {
	class  *metadata.ClassInfo
	entity any
}

// saveRun is the state of one Save call
type saveRun struct {
	s       *Session
	visited map[uintptr]bool
	created []created
	desired map[relKey]bool
	stale   map[relKey]bool
}

// reset marks entities created by the run as new again
func (r *saveRun) reset() {
	for _, c := range r.created {
		c.class.SetID(c.entity, nil)
	}
}

// visit saves the entity behind ptr, then its relationship targets with
// one less hop to go
func (r *saveRun) visit(ctx context.Context, ptr reflect.Value, class *metadata.ClassInfo, depth int) error {
	if r.visited[ptr.Pointer()] {
		return nil
	}
	r.visited[ptr.Pointer()] = true

	s := r.s
	entity := ptr.Interface()
	s.publish(EventPreSave, class, entity)

	props, err := class.ToProperties(entity)
	if err != nil {
		return err
	}

	id, persisted := class.IDOf(entity)
	switch {
	case !persisted:
		resp, err := s.request(ctx, cypher.CreateNode{Labels: []string{class.Label}, Properties: props})
		if err != nil {
			return err
		}
		if id, err = returnedID(resp.Rows); err != nil {
			return fmt.Errorf("failed to create %s: %w", class.Label, err)
		}
		class.SetID(entity, &id)
		r.created = append(r.created, created{class: class, entity: entity})
		s.mapping.register(id, class, ptr, props)
	case s.mapping.dirty(id, props):
		resp, err := s.request(ctx, cypher.UpdateNode{ID: id, Properties: props})
		if err != nil {
			return err
		}
		if len(resp.Rows) == 0 {
			return fmt.Errorf("%w: %s %d", ErrNotFound, class.Label, id)
		}
		s.mapping.register(id, class, ptr, props)
	default:
		s.mapping.register(id, class, ptr, props)
	}

	if depth != 0 {
		for _, field := range class.Relationships() {
			if err := r.link(ctx, ptr, id, field, depth); err != nil {
				return err
			}
		}
	}

	s.publish(EventPostSave, class, entity)
	return nil
}

// link saves the targets of one relationship field and merges the
// relationships to them
func (r *saveRun) link(ctx context.Context, ptr reflect.Value, id int64, field *metadata.FieldInfo, depth int) error {
	s := r.s
	targetClass, err := s.registry.ClassForType(field.Target)
	if err != nil {
		return err
	}

	next := depth - 1
	if depth < 0 {
		next = depth
	}

	targets := field.Targets(ptr.Elem())
	ids := make([]int64, 0, len(targets))
	for _, target := range targets {
		if err := r.visit(ctx, target, targetClass, next); err != nil {
			return err
		}
		targetID, _ := targetClass.IDOf(target.Interface())
		ids = append(ids, targetID)

		key := keyFor(field, id, targetID)
		r.desired[key] = true
		delete(r.stale, key)
		if s.mapping.related[key] {
			continue
		}
		if _, err := s.request(ctx, cypher.CreateRelationship{StartID: key.start, EndID: key.end, Type: key.typ}); err != nil {
			return err
		}
		s.mapping.related[key] = true
	}

	fk := fieldKey{id, field.Name}
	if previous, ok := s.mapping.known[fk]; ok {
		current := make(map[int64]bool, len(ids))
		for _, t := range ids {
			current[t] = true
		}
		for t := range previous {
			if key := keyFor(field, id, t); !current[t] && !r.desired[key] {
				r.stale[key] = true
			}
		}
	}
	s.mapping.setKnown(id, field, ids)
	return nil
}

// deleteStale removes relationships dropped from fields that were read
// from the database and are not wanted by any other field of the run
func (r *saveRun) deleteStale(ctx context.Context) error {
	for key := range r.stale {
		if r.desired[key] {
			continue
		}
		if _, err := r.s.request(ctx, cypher.DeleteRelationship{StartID: key.start, EndID: key.end, Type: key.typ}); err != nil {
			return err
		}
		delete(r.s.mapping.related, key)
	}
	return nil
}

func returnedID(rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("no id returned")
	}
	id, ok := rows[0][cypher.ColumnID].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected id %T", rows[0][cypher.ColumnID])
	}
	return id, nil
}
