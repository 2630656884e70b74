package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"
)

// Converter translates a field value to and from its graph representation
type Converter interface {
	// ToGraph returns the property value, or nil to leave the property out
	ToGraph(v reflect.Value) (any, error)
	// FromGraph assigns raw to v; raw is never nil
	FromGraph(raw any, v reflect.Value) error
}

var (
	convertersMu sync.RWMutex
	converters   = map[string]Converter{
		"epochmillis": epochMillis{},
	}
)

// RegisterConverter makes a converter available to the converter= tag option
func RegisterConverter(name string, c Converter) {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters[name] = c
}

func lookupConverter(name string) (Converter, bool) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()
	c, ok := converters[name]
	return c, ok
}

// epochMillis stores a time.Time as milliseconds since the Unix epoch
type epochMillis struct{}

func (epochMillis) ToGraph(v reflect.Value) (any, error) {
	t, ok := v.Interface().(time.Time)
	if !ok {
		return nil, fmt.Errorf("epochmillis needs a time.Time, got %s", v.Type())
	}
	if t.IsZero() {
		return nil, nil
	}
	return t.UnixMilli(), nil
}

func (epochMillis) FromGraph(raw any, v reflect.Value) error {
	n, err := toInt64(raw)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(time.UnixMilli(n).UTC()))
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// supportedProperty reports whether t can be stored as a property
func supportedProperty(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return true
	}
	if isScalar(t) {
		return true
	}
	return isScalarSlice(t)
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isScalarSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && (isScalar(t.Elem()) || t.Elem() == timeType)
}

// toGraph converts a field value into a property value; nil means absent
func toGraph(v reflect.Value, conv Converter) (any, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		return toGraph(v.Elem(), conv)
	}
	if conv != nil {
		return conv.ToGraph(v)
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, nil
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		list := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := toGraph(v.Index(i), nil)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	}
	return nil, fmt.Errorf("unsupported property type %s", v.Type())
}

// fromGraph assigns a property value to a field
func fromGraph(v reflect.Value, raw any, conv Converter) error {
	if raw == nil {
		v.Set(reflect.Zero(v.Type()))
		return nil
	}
	if v.Kind() == reflect.Pointer {
		target := reflect.New(v.Type().Elem())
		if err := fromGraph(target.Elem(), raw, conv); err != nil {
			return err
		}
		v.Set(target)
		return nil
	}
	if conv != nil {
		return conv.FromGraph(raw, v)
	}
	if v.Type() == timeType {
		return assignTime(v, raw)
	}

	switch v.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return mismatch(raw, v)
		}
		v.SetString(s)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return mismatch(raw, v)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, v.Type())
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(raw)
		if err != nil {
			return err
		}
		if n < 0 || v.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, v.Type())
		}
		v.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(raw)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return mismatch(raw, v)
		}
		slice := reflect.MakeSlice(v.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := fromGraph(slice.Index(i), rv.Index(i).Interface(), nil); err != nil {
				return err
			}
		}
		v.Set(slice)
	default:
		return mismatch(raw, v)
	}
	return nil
}

func assignTime(v reflect.Value, raw any) error {
	switch t := raw.(type) {
	case time.Time:
		v.Set(reflect.ValueOf(t))
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return fmt.Errorf("failed to parse time %q: %w", t, err)
		}
		v.Set(reflect.ValueOf(parsed))
	default:
		return mismatch(raw, v)
	}
	return nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("cannot use %T as an integer", raw)
}

func toFloat64(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	i, err := toInt64(raw)
	if err != nil {
		return 0, fmt.Errorf("cannot use %T as a float", raw)
	}
	return float64(i), nil
}

func mismatch(raw any, v reflect.Value) error {
	return fmt.Errorf("cannot assign %T to %s", raw, v.Type())
}
