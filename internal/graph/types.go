// Package graph provides the dependency graph and ordering algorithms for
// metaport's entity kinds.
package graph

import (
	"github.com/dbsmedya/metaport/internal/schema"
)

// Node represents one entity kind in the dependency graph.
type Node struct {
	Kind      schema.Kind
	Index     int  // declaration position in the registry, used as ordering tie-break
	Container bool // container kind (domain, database...) vs leaf kind (table, chart...)
}

// Edge represents a reference relationship between two kinds. From is the
// referenced kind, To is the referencing kind, so edges point in the
// direction records must be written.
type Edge struct {
	From schema.Kind
	To   schema.Kind
}

// Graph is the adjacency structure over entity kinds. An edge A -> B means
// records of kind B reference records of kind A, so A must be imported
// before B.
type Graph struct {
	Nodes    map[schema.Kind]*Node
	Children map[schema.Kind][]schema.Kind // referenced kind -> referencing kinds
	Parents  map[schema.Kind][]schema.Kind // referencing kind -> referenced kinds
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:    make(map[schema.Kind]*Node),
		Children: make(map[schema.Kind][]schema.Kind),
		Parents:  make(map[schema.Kind][]schema.Kind),
	}
}

// AddNode adds a kind to the graph.
func (g *Graph) AddNode(node *Node) {
	g.Nodes[node.Kind] = node
}

// AddEdge records that records of kind child reference records of kind
// parent. Both directions are indexed for efficient lookups.
func (g *Graph) AddEdge(parent, child schema.Kind) {
	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// GetChildren returns the kinds whose records reference the given kind.
func (g *Graph) GetChildren(kind schema.Kind) []schema.Kind {
	return g.Children[kind]
}

// GetParents returns the kinds referenced by records of the given kind.
func (g *Graph) GetParents(kind schema.Kind) []schema.Kind {
	return g.Parents[kind]
}

// HasNode returns true if the graph contains the kind.
func (g *Graph) HasNode(kind schema.Kind) bool {
	_, exists := g.Nodes[kind]
	return exists
}

// NodeCount returns the number of kinds in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of reference edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.Children {
		count += len(children)
	}
	return count
}

// AllEdges returns every edge in the graph.
func (g *Graph) AllEdges() []Edge {
	var edges []Edge
	for parent, children := range g.Children {
		for _, child := range children {
			edges = append(edges, Edge{From: parent, To: child})
		}
	}
	return edges
}

// InDegree returns the number of kinds the given kind depends on.
func (g *Graph) InDegree(kind schema.Kind) int {
	return len(g.Parents[kind])
}

// OutDegree returns the number of kinds depending on the given kind.
func (g *Graph) OutDegree(kind schema.Kind) int {
	return len(g.Children[kind])
}
