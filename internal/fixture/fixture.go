// Package fixture loads and dumps graph data independent of any mapped
// entity types.
//
// A fixture names its nodes with keys local to the file; relationships
// refer to those keys. Import creates everything in a single transaction
// and returns the database id assigned to each key.
package fixture

import (
	"fmt"
	"sort"
)

// Fixture is a self-contained graph
type Fixture struct {
	Nodes         []Node         `yaml:"nodes" json:"nodes"`
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Node is a fixture node
type Node struct {
	Key        string         `yaml:"key" json:"key"`
	Labels     []string       `yaml:"labels" json:"labels"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Relationship links two fixture nodes by key
type Relationship struct {
	From       string         `yaml:"from" json:"from"`
	To         string         `yaml:"to" json:"to"`
	Type       string         `yaml:"type" json:"type"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Validate checks keys are unique and every relationship endpoint exists
func (f *Fixture) Validate() error {
	keys := make(map[string]bool, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.Key == "" {
			return fmt.Errorf("node %d has no key", i)
		}
		if keys[n.Key] {
			return fmt.Errorf("duplicate node key %q", n.Key)
		}
		if len(n.Labels) == 0 {
			return fmt.Errorf("node %q has no labels", n.Key)
		}
		keys[n.Key] = true
	}
	for i, r := range f.Relationships {
		if r.Type == "" {
			return fmt.Errorf("relationship %d has no type", i)
		}
		if !keys[r.From] {
			return fmt.Errorf("relationship %d starts at unknown node %q", i, r.From)
		}
		if !keys[r.To] {
			return fmt.Errorf("relationship %d ends at unknown node %q", i, r.To)
		}
	}
	return nil
}

// Count returns the number of nodes carrying label
func (f *Fixture) Count(label string) int {
	n := 0
	for _, node := range f.Nodes {
		for _, l := range node.Labels {
			if l == label {
				n++
				break
			}
		}
	}
	return n
}

// Labels returns the distinct labels in the fixture, sorted
func (f *Fixture) Labels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, n := range f.Nodes {
		for _, l := range n.Labels {
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	sort.Strings(labels)
	return labels
}

// normalize turns decoded numbers into the int64 and float64 values the
// drivers store
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		return normalizeMap(v)
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
