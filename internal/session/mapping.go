package session

import (
	"fmt"
	"reflect"
	"sort"

	"graphogm/internal/cypher"
	"graphogm/internal/metadata"
	"graphogm/internal/model"
)

// relKey identifies a relationship as stored: start, end and type
type relKey struct {
	start, end int64
	typ        string
}

// fieldKey identifies one relationship field of one entity
type fieldKey struct {
	id    int64
	field string
}

// mappingContext is what a session knows about the graph it has seen
type mappingContext struct {
	entities  map[int64]reflect.Value // entity pointers by node id
	classes   map[int64]*metadata.ClassInfo
	snapshots map[int64]map[string]any
	known     map[fieldKey]map[int64]bool
	related   map[relKey]bool
}

func newMappingContext() *mappingContext {
	return &mappingContext{
		entities:  make(map[int64]reflect.Value),
		classes:   make(map[int64]*metadata.ClassInfo),
		snapshots: make(map[int64]map[string]any),
		known:     make(map[fieldKey]map[int64]bool),
		related:   make(map[relKey]bool),
	}
}

// clone copies the maps; entity pointers are shared
func (c *mappingContext) clone() *mappingContext {
	out := newMappingContext()
	for id, v := range c.entities {
		out.entities[id] = v
	}
	for id, class := range c.classes {
		out.classes[id] = class
	}
	for id, props := range c.snapshots {
		out.snapshots[id] = props
	}
	for k, targets := range c.known {
		copied := make(map[int64]bool, len(targets))
		for t := range targets {
			copied[t] = true
		}
		out.known[k] = copied
	}
	for k := range c.related {
		out.related[k] = true
	}
	return out
}

func (c *mappingContext) register(id int64, class *metadata.ClassInfo, entity reflect.Value, snapshot map[string]any) {
	c.entities[id] = entity
	c.classes[id] = class
	c.snapshots[id] = snapshot
}

// dirty reports whether props differ from what was last read or written
func (c *mappingContext) dirty(id int64, props map[string]any) bool {
	snapshot, ok := c.snapshots[id]
	if !ok {
		return true
	}
	return !reflect.DeepEqual(snapshot, props)
}

// forget drops everything known about a node
func (c *mappingContext) forget(id int64) {
	delete(c.entities, id)
	delete(c.classes, id)
	delete(c.snapshots, id)
	for k := range c.known {
		if k.id == id {
			delete(c.known, k)
		}
	}
	for k := range c.related {
		if k.start == id || k.end == id {
			delete(c.related, k)
		}
	}
}

// setKnown records the targets a relationship field holds in the database
func (c *mappingContext) setKnown(id int64, field *metadata.FieldInfo, targets []int64) {
	set := make(map[int64]bool, len(targets))
	for _, t := range targets {
		set[t] = true
		c.related[keyFor(field, id, t)] = true
	}
	c.known[fieldKey{id, field.Name}] = set
}

// keyFor orients a field's link from owner to target the way it is stored
func keyFor(field *metadata.FieldInfo, owner, target int64) relKey {
	if field.Direction == metadata.Incoming {
		return relKey{start: target, end: owner, typ: field.Relationship}
	}
	return relKey{start: owner, end: target, typ: field.Relationship}
}

// mapResponse turns the rows of a node query into entities of class, in
// row order, hydrating relationship fields of every entity found less than
// depth hops from its row's root
func (s *Session) mapResponse(resp *model.Response, class *metadata.ClassInfo, depth int) ([]reflect.Value, error) {
	m := newMapper(s)
	roots := make([]reflect.Value, 0, len(resp.Rows))

	for _, row := range resp.Rows {
		rootNode, ok := row[cypher.ColumnNode].(model.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected %s column %T", cypher.ColumnNode, row[cypher.ColumnNode])
		}
		root, err := m.entity(rootNode, class)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)

		g := model.NewGraph()
		g.Collect(model.RowValues(resp.Columns, row)...)
		if err := m.collect(g, rootNode.ID, depth); err != nil {
			return nil, err
		}
	}

	m.hydrate()
	return roots, nil
}

// mapper materializes the nodes of one response
type mapper struct {
	s         *Session
	refreshed map[int64]bool
	// targets found for each hydrated field, unioned across rows
	targets map[int64]map[*metadata.FieldInfo]map[int64]bool
	order   []int64
}

func newMapper(s *Session) *mapper {
	return &mapper{
		s:         s,
		refreshed: make(map[int64]bool),
		targets:   make(map[int64]map[*metadata.FieldInfo]map[int64]bool),
	}
}

// entity returns the instance for n, creating it or refreshing its
// properties once per response; class may be nil to resolve it from labels
func (m *mapper) entity(n model.Node, class *metadata.ClassInfo) (reflect.Value, error) {
	ctx := m.s.mapping
	if m.refreshed[n.ID] {
		return ctx.entities[n.ID], nil
	}
	if class == nil {
		var ok bool
		if class, ok = m.s.registry.ClassForLabels(n.Labels); !ok {
			return reflect.Value{}, nil
		}
	}

	if existing, ok := ctx.entities[n.ID]; ok && existing.Type().Elem() == class.Type {
		if err := m.refresh(existing, class, n); err != nil {
			return reflect.Value{}, err
		}
		return existing, nil
	}

	ptr := class.New()
	if err := m.refresh(ptr, class, n); err != nil {
		return reflect.Value{}, err
	}
	id := n.ID
	class.SetID(ptr.Interface(), &id)
	return ptr, nil
}

func (m *mapper) refresh(ptr reflect.Value, class *metadata.ClassInfo, n model.Node) error {
	entity := ptr.Interface()
	if err := class.SetProperties(entity, n.Properties); err != nil {
		return err
	}
	snapshot, err := class.ToProperties(entity)
	if err != nil {
		return err
	}
	m.s.mapping.register(n.ID, class, ptr, snapshot)
	m.refreshed[n.ID] = true
	return nil
}

// collect materializes every node of g and records, for nodes closer than
// depth to root, the targets of their relationship fields
func (m *mapper) collect(g *model.Graph, root int64, depth int) error {
	for _, n := range g.Nodes {
		if _, err := m.entity(n, nil); err != nil {
			return err
		}
	}

	distances := g.Distances(root)
	for _, n := range g.Nodes {
		d, reachable := distances[n.ID]
		if !reachable || (depth >= 0 && d >= depth) {
			continue
		}
		class, ok := m.s.mapping.classes[n.ID]
		if !ok {
			continue
		}
		m.fields(n.ID, class, g)
	}
	return nil
}

func (m *mapper) fields(id int64, class *metadata.ClassInfo, g *model.Graph) {
	byField, ok := m.targets[id]
	if !ok {
		byField = make(map[*metadata.FieldInfo]map[int64]bool)
		m.targets[id] = byField
		m.order = append(m.order, id)
	}

	for _, field := range class.Relationships() {
		found, ok := byField[field]
		if !ok {
			found = make(map[int64]bool)
			byField[field] = found
		}
		for _, r := range g.Relationships {
			if r.Type != field.Relationship {
				continue
			}
			var other int64
			switch {
			case field.Direction == metadata.Incoming && r.EndID == id:
				other = r.StartID
			case field.Direction != metadata.Incoming && r.StartID == id:
				other = r.EndID
			default:
				continue
			}
			if target, ok := m.s.mapping.classes[other]; ok && target.Type == field.Target {
				found[other] = true
			}
		}
	}
}

// hydrate assigns the collected targets, sorted by node id
func (m *mapper) hydrate() {
	ctx := m.s.mapping
	for _, id := range m.order {
		entity, ok := ctx.entities[id]
		if !ok {
			continue
		}
		for field, found := range m.targets[id] {
			ids := make([]int64, 0, len(found))
			for t := range found {
				ids = append(ids, t)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			values := make([]reflect.Value, 0, len(ids))
			for _, t := range ids {
				values = append(values, ctx.entities[t])
			}
			field.SetTargets(entity.Elem(), values)
			ctx.setKnown(id, field, ids)
		}
	}
}
