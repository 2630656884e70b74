package fixture

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML fixtures
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Decode parses and validates a YAML fixture
func (c *YAMLCodec) Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return prepare(&f)
}

// Encode writes f as YAML
func (c *YAMLCodec) Encode(f *Fixture, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(f); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// prepare normalizes property values and validates the fixture
func prepare(f *Fixture) (*Fixture, error) {
	for i := range f.Nodes {
		f.Nodes[i].Properties = normalizeMap(f.Nodes[i].Properties)
	}
	for i := range f.Relationships {
		f.Relationships[i].Properties = normalizeMap(f.Relationships[i].Properties)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return f, nil
}
