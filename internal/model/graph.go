package model

import "sort"

// Node is a labelled vertex with properties
type Node struct {
	ID         int64          `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
}

// HasLabel reports whether the node carries label
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// GetProperty gets a property value
func (n Node) GetProperty(key string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	val, ok := n.Properties[key]
	return val, ok
}

// Relationship is a typed, directed edge between two nodes
type Relationship struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	StartID    int64          `json:"start_id"`
	EndID      int64          `json:"end_id"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Other returns the endpoint opposite to id
func (r Relationship) Other(id int64) int64 {
	if r.StartID == id {
		return r.EndID
	}
	return r.StartID
}

// Path is an alternating sequence of nodes and relationships
type Path struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Graph holds the distinct nodes and relationships of a result
type Graph struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`

	nodeIndex map[int64]int
	relIndex  map[int64]int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:         make([]Node, 0),
		Relationships: make([]Relationship, 0),
		nodeIndex:     make(map[int64]int),
		relIndex:      make(map[int64]int),
	}
}

// AddNode adds a node unless one with the same id is already present
func (g *Graph) AddNode(node Node) bool {
	if _, ok := g.nodeIndex[node.ID]; ok {
		return false
	}
	g.nodeIndex[node.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, node)
	return true
}

// AddRelationship adds a relationship unless one with the same id is already present
func (g *Graph) AddRelationship(rel Relationship) bool {
	if _, ok := g.relIndex[rel.ID]; ok {
		return false
	}
	g.relIndex[rel.ID] = len(g.Relationships)
	g.Relationships = append(g.Relationships, rel)
	return true
}

// Node looks up a node by id
func (g *Graph) Node(id int64) (Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Collect walks values and adds every node and relationship it finds
func (g *Graph) Collect(values ...any) {
	for _, v := range values {
		switch v := v.(type) {
		case Node:
			g.AddNode(v)
		case *Node:
			if v != nil {
				g.AddNode(*v)
			}
		case Relationship:
			g.AddRelationship(v)
		case *Relationship:
			if v != nil {
				g.AddRelationship(*v)
			}
		case Path:
			for _, n := range v.Nodes {
				g.AddNode(n)
			}
			for _, r := range v.Relationships {
				g.AddRelationship(r)
			}
		case []any:
			g.Collect(v...)
		case []Node:
			for _, n := range v {
				g.AddNode(n)
			}
		case []Relationship:
			for _, r := range v {
				g.AddRelationship(r)
			}
		case map[string]any:
			// Map iteration order is random; visit keys sorted so node order is stable
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				g.Collect(v[k])
			}
		}
	}
}

// Distances returns the hop count from root to every node reachable through
// the graph's relationships, ignoring direction
func (g *Graph) Distances(root int64) map[int64]int {
	adjacency := make(map[int64][]int64)
	for _, r := range g.Relationships {
		adjacency[r.StartID] = append(adjacency[r.StartID], r.EndID)
		adjacency[r.EndID] = append(adjacency[r.EndID], r.StartID)
	}

	dist := map[int64]int{root: 0}
	queue := []int64{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[current] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[current] + 1
			queue = append(queue, next)
		}
	}
	return dist
}
