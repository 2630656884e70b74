package fixture

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON fixtures
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Decode parses and validates a JSON fixture; whole numbers become int64
func (c *JSONCodec) Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	for i := range f.Nodes {
		f.Nodes[i].Properties = numbers(f.Nodes[i].Properties)
	}
	for i := range f.Relationships {
		f.Relationships[i].Properties = numbers(f.Relationships[i].Properties)
	}
	return prepare(&f)
}

// Encode writes f as indented JSON
func (c *JSONCodec) Encode(f *Fixture, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(f); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func numbers(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = number(v)
	}
	return m
}

func number(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i, item := range v {
			v[i] = number(item)
		}
	}
	return v
}
