package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrNotRegistered is returned for types the registry does not know
	ErrNotRegistered = errors.New("type is not a registered entity")

	// ErrNotEntity is returned for values that cannot be mapped at all
	ErrNotEntity = errors.New("value is not an entity")
)

var labelerType = reflect.TypeOf((*Labeler)(nil)).Elem()

// Registry holds the class of every registered struct type
type Registry struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]*ClassInfo
	byLabel map[string]*ClassInfo
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[reflect.Type]*ClassInfo),
		byLabel: make(map[string]*ClassInfo),
	}
}

// Register adds the types of values, and every type they reach through
// relationship fields. Values may be structs, pointers to structs or
// reflect.Types.
func (r *Registry) Register(values ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[reflect.Type]*ClassInfo)
	for _, v := range values {
		t, err := structType(v)
		if err != nil {
			return err
		}
		if _, err := r.build(t, pending); err != nil {
			return err
		}
	}

	for t, class := range pending {
		if existing, ok := r.byLabel[class.Label]; ok && existing.Type != t {
			return fmt.Errorf("label %q is used by both %s and %s", class.Label, existing.Type, t)
		}
	}
	for t, class := range pending {
		r.byType[t] = class
		r.byLabel[class.Label] = class
	}
	return nil
}

// ClassFor returns the class of a struct, pointer, slice or reflect.Type
// naming a registered type
func (r *Registry) ClassFor(v any) (*ClassInfo, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrNotEntity)
	}
	return r.ClassForType(t)
}

// ClassForType returns the class of t after stripping pointers and slices
func (r *Registry) ClassForType(t reflect.Type) (*ClassInfo, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	class, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return class, nil
}

// ClassForLabel returns the class mapped to label
func (r *Registry) ClassForLabel(label string) (*ClassInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	class, ok := r.byLabel[label]
	return class, ok
}

// ClassForLabels returns the first class matching one of labels
func (r *Registry) ClassForLabels(labels []string) (*ClassInfo, bool) {
	for _, l := range labels {
		if class, ok := r.ClassForLabel(l); ok {
			return class, true
		}
	}
	return nil, false
}

// Classes returns every registered class sorted by label
func (r *Registry) Classes() []*ClassInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	classes := make([]*ClassInfo, 0, len(r.byType))
	for _, c := range r.byType {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Label < classes[j].Label })
	return classes
}

// build describes t, recursing into relationship targets; callers hold the lock
func (r *Registry) build(t reflect.Type, pending map[reflect.Type]*ClassInfo) (*ClassInfo, error) {
	if class, ok := r.byType[t]; ok {
		return class, nil
	}
	if class, ok := pending[t]; ok {
		return class, nil
	}

	class := &ClassInfo{
		Type:       t,
		Label:      labelOf(t),
		byProperty: make(map[string]*FieldInfo),
	}
	pending[t] = class

	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous || throughPointer(t, sf.Index) {
			continue
		}
		tag, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: bad %s tag: %w", t.Name(), sf.Name, TagName, err)
		}
		if tag.skip {
			continue
		}

		field := &FieldInfo{
			Name:   sf.Name,
			Index:  sf.Index,
			Type:   sf.Type,
			Unique: tag.unique,
		}

		switch {
		case tag.id || (class.id == nil && sf.Name == "ID" && sf.Type == idType):
			if sf.Type != idType {
				return nil, fmt.Errorf("%s.%s: id field must be *int64, got %s", t.Name(), sf.Name, sf.Type)
			}
			class.id = field

		case tag.relationship != "" || isEntityReference(sf.Type):
			target, many, ok := referenceTarget(sf.Type)
			if !ok {
				return nil, fmt.Errorf("%s.%s: relationship field must be *T or []*T, got %s", t.Name(), sf.Name, sf.Type)
			}
			field.Relationship = tag.relationship
			if field.Relationship == "" {
				field.Relationship = relationshipType(sf.Name)
			}
			field.Direction = tag.direction
			if field.Direction == "" {
				field.Direction = Outgoing
			}
			field.Many = many
			field.Target = target
			if _, err := r.build(target, pending); err != nil {
				return nil, err
			}
			class.relationships = append(class.relationships, field)

		default:
			if !supportedProperty(sf.Type) {
				return nil, fmt.Errorf("%s.%s: unsupported property type %s", t.Name(), sf.Name, sf.Type)
			}
			field.Property = tag.name
			if field.Property == "" {
				field.Property = propertyName(sf.Name)
			}
			if tag.converter != "" {
				conv, ok := lookupConverter(tag.converter)
				if !ok {
					return nil, fmt.Errorf("%s.%s: unknown converter %q", t.Name(), sf.Name, tag.converter)
				}
				field.Converter = conv
			}
			if _, dup := class.byProperty[field.Property]; dup {
				return nil, fmt.Errorf("%s: property %q is mapped twice", t.Name(), field.Property)
			}
			class.byProperty[field.Property] = field
			class.properties = append(class.properties, field)
		}
	}

	if class.id == nil {
		return nil, fmt.Errorf("%s has no id field", t.Name())
	}
	return class, nil
}

var idType = reflect.TypeOf((*int64)(nil))

func structType(v any) (reflect.Type, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrNotEntity)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrNotEntity, t)
	}
	return t, nil
}

func labelOf(t reflect.Type) string {
	if reflect.PointerTo(t).Implements(labelerType) {
		if l := reflect.New(t).Interface().(Labeler).NodeLabel(); l != "" {
			return l
		}
	}
	return t.Name()
}

// throughPointer reports whether a promoted field lives behind an embedded pointer
func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			return true
		}
		t = f.Type
	}
	return false
}

func isEntityReference(t reflect.Type) bool {
	_, _, ok := referenceTarget(t)
	return ok
}

// referenceTarget unwraps *T or []*T where T is a struct other than time.Time
func referenceTarget(t reflect.Type) (reflect.Type, bool, bool) {
	many := false
	if t.Kind() == reflect.Slice {
		many = true
		t = t.Elem()
	}
	if t.Kind() != reflect.Pointer {
		return nil, false, false
	}
	t = t.Elem()
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, false, false
	}
	return t, many, true
}
