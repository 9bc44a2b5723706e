package graph

import (
	"slices"
	"strings"

	"github.com/matzehuels/gallade/pkg/coord"
)

// Node is one concrete coordinate reached during the walk.
type Node struct {
	// Coordinate is the resolved artifact. Its Scope is the widest scope
	// seen on any path during the walk.
	Coordinate coord.Coordinate

	// Dependency is the declaration that first reached the node.
	Dependency coord.Dependency

	// Depth is the length of the shortest path from a direct dependency;
	// direct dependencies have depth 0.
	Depth int

	Packaging string
	Source    string   // repository that served the descriptor
	Path      []string // IDs from the direct dependency to this node

	Parents  []*Node
	Children []*Node

	exclusions []coord.Exclusion
}

// ID returns the node's identity, "group:artifact:version[:classifier]".
func (n *Node) ID() string { return n.Coordinate.String() }

// Key returns the library key of the node.
func (n *Node) Key() coord.Key { return n.Coordinate.Key() }

// Direct reports whether the node was declared in the manifest.
func (n *Node) Direct() bool { return n.Depth == 0 }

// Version returns the resolved version.
func (n *Node) Version() string { return n.Coordinate.Version }

type edge struct{ from, to string }

// Graph holds every candidate node found by a [Builder].
type Graph struct {
	roots      []*Node
	nodes      map[string]*Node
	candidates map[coord.Key][]*Node
	edgeScopes map[edge]coord.Scope
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		candidates: make(map[coord.Key][]*Node),
		edgeScopes: make(map[edge]coord.Scope),
	}
}

// Roots returns the direct dependencies in declaration order.
func (g *Graph) Roots() []*Node { return slices.Clone(g.roots) }

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns every node sorted by coordinate.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, compareNodes)
	return out
}

// Keys returns every library key in the graph, sorted.
func (g *Graph) Keys() []coord.Key {
	out := make([]coord.Key, 0, len(g.candidates))
	for k := range g.candidates {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b coord.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Candidates returns the nodes for k in discovery order.
func (g *Graph) Candidates(k coord.Key) []*Node {
	return slices.Clone(g.candidates[k])
}

// EdgeScope returns the scope with which parent declared child.
func (g *Graph) EdgeScope(parent, child *Node) coord.Scope {
	return g.edgeScopes[edge{parent.ID(), child.ID()}]
}

// Add inserts n. A node with the same ID is replaced only in the node
// index; callers add each coordinate once.
func (g *Graph) Add(n *Node) {
	g.nodes[n.ID()] = n
	k := n.Key()
	g.candidates[k] = append(g.candidates[k], n)
	if n.Depth == 0 {
		g.roots = append(g.roots, n)
	}
}

// Connect records that parent declares child with the given scope.
// Repeated calls for the same pair are ignored.
func (g *Graph) Connect(parent, child *Node, scope coord.Scope) {
	e := edge{parent.ID(), child.ID()}
	if _, ok := g.edgeScopes[e]; ok {
		return
	}
	g.edgeScopes[e] = scope
	parent.Children = append(parent.Children, child)
	child.Parents = append(child.Parents, parent)
}

func compareNodes(a, b *Node) int {
	switch {
	case a.Coordinate.Less(b.Coordinate):
		return -1
	case b.Coordinate.Less(a.Coordinate):
		return 1
	}
	return 0
}
