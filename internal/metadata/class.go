package metadata

import (
	"fmt"
	"reflect"
)

// Direction is the orientation of a relationship seen from the owning class
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Labeler lets a type choose its node label
type Labeler interface {
	NodeLabel() string
}

// FieldInfo describes one mapped struct field
type FieldInfo struct {
	Name      string // Go field name
	Property  string // graph property name, empty for relationships
	Index     []int
	Type      reflect.Type
	Unique    bool
	Converter Converter

	// Relationship fields only
	Relationship string
	Direction    Direction
	Many         bool
	Target       reflect.Type // struct type of the related class
}

// IsRelationship reports whether the field links to other entities
func (f *FieldInfo) IsRelationship() bool {
	return f.Relationship != ""
}

// Targets returns the non-nil entity pointers held by a relationship field
// of the struct value v
func (f *FieldInfo) Targets(v reflect.Value) []reflect.Value {
	fv := v.FieldByIndex(f.Index)
	if !f.Many {
		if fv.IsNil() {
			return nil
		}
		return []reflect.Value{fv}
	}
	targets := make([]reflect.Value, 0, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		if item := fv.Index(i); !item.IsNil() {
			targets = append(targets, item)
		}
	}
	return targets
}

// SetTargets replaces the content of a relationship field of the struct
// value v; a single-valued field takes the first target or nil
func (f *FieldInfo) SetTargets(v reflect.Value, targets []reflect.Value) {
	fv := v.FieldByIndex(f.Index)
	if !f.Many {
		if len(targets) == 0 {
			fv.Set(reflect.Zero(f.Type))
			return
		}
		fv.Set(targets[0])
		return
	}
	slice := reflect.MakeSlice(f.Type, 0, len(targets))
	for _, t := range targets {
		slice = reflect.Append(slice, t)
	}
	fv.Set(slice)
}

// ClassInfo is the mapping of one struct type to a node label
type ClassInfo struct {
	Type  reflect.Type
	Label string

	id            *FieldInfo
	properties    []*FieldInfo
	relationships []*FieldInfo
	byProperty    map[string]*FieldInfo
}

// Properties returns the property fields in declaration order
func (c *ClassInfo) Properties() []*FieldInfo {
	return c.properties
}

// Relationships returns the relationship fields in declaration order
func (c *ClassInfo) Relationships() []*FieldInfo {
	return c.relationships
}

// Property finds a property field by graph name
func (c *ClassInfo) Property(name string) (*FieldInfo, bool) {
	f, ok := c.byProperty[name]
	return f, ok
}

// UniqueProperties returns the fields tagged unique
func (c *ClassInfo) UniqueProperties() []*FieldInfo {
	var unique []*FieldInfo
	for _, f := range c.properties {
		if f.Unique {
			unique = append(unique, f)
		}
	}
	return unique
}

// New allocates a fresh entity and returns the pointer
func (c *ClassInfo) New() reflect.Value {
	return reflect.New(c.Type)
}

// Value checks that entity is a non-nil pointer to the class's struct and
// returns the addressable struct value
func (c *ClassInfo) Value(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: %T is not a non-nil pointer", ErrNotEntity, entity)
	}
	if rv.Elem().Type() != c.Type {
		return reflect.Value{}, fmt.Errorf("%w: %T is not a %s", ErrNotEntity, entity, c.Type)
	}
	return rv.Elem(), nil
}

// IDOf returns the identity of entity, false when it was never saved
func (c *ClassInfo) IDOf(entity any) (int64, bool) {
	v, err := c.Value(entity)
	if err != nil {
		return 0, false
	}
	idv := v.FieldByIndex(c.id.Index)
	if idv.IsNil() {
		return 0, false
	}
	return idv.Elem().Int(), true
}

// SetID assigns the identity of entity; nil marks it as new again
func (c *ClassInfo) SetID(entity any, id *int64) {
	v, err := c.Value(entity)
	if err != nil {
		return
	}
	idv := v.FieldByIndex(c.id.Index)
	if id == nil {
		idv.Set(reflect.Zero(idv.Type()))
		return
	}
	value := *id
	idv.Set(reflect.ValueOf(&value))
}

// ToProperties reads the property fields of entity into a graph property
// map; nil pointers and zero times are left out
func (c *ClassInfo) ToProperties(entity any) (map[string]any, error) {
	v, err := c.Value(entity)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(c.properties))
	for _, f := range c.properties {
		value, err := toGraph(v.FieldByIndex(f.Index), f.Converter)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s.%s: %w", c.Type.Name(), f.Name, err)
		}
		if value != nil {
			props[f.Property] = value
		}
	}
	return props, nil
}

// SetProperties writes graph properties into entity; fields whose property
// is absent are reset to their zero value
func (c *ClassInfo) SetProperties(entity any, props map[string]any) error {
	v, err := c.Value(entity)
	if err != nil {
		return err
	}
	for _, f := range c.properties {
		if err := fromGraph(v.FieldByIndex(f.Index), props[f.Property], f.Converter); err != nil {
			return fmt.Errorf("failed to set %s.%s: %w", c.Type.Name(), f.Name, err)
		}
	}
	return nil
}

// PropertyValue converts a filter value for property into its graph form,
// using the field's converter when the value has the field's type
func (c *ClassInfo) PropertyValue(property string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	f, ok := c.byProperty[property]
	rv := reflect.ValueOf(value)

	if ok && !isScalarSlice(f.Type) && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		list := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := c.PropertyValue(property, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	}

	var conv Converter
	if ok && baseType(f.Type) == baseType(rv.Type()) {
		conv = f.Converter
	}
	return toGraph(rv, conv)
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
