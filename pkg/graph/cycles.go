package graph

import (
	"github.com/matzehuels/gallade/pkg/errors"
)

// FindCycle runs a depth-first search from roots and returns the first
// cycle found as a path whose last element repeats an earlier one, or nil
// when the graph reachable from roots is acyclic. children defines the
// edges, which lets callers search a re-pointed view of a graph.
func FindCycle(roots []*Node, children func(*Node) []*Node) []*Node {
	const (
		white = iota
		gray
		black
	)

	color := make(map[*Node]int)
	var stack []*Node
	var cycle []*Node

	var dfs func(n *Node) bool
	dfs = func(n *Node) bool {
		color[n] = gray
		stack = append(stack, n)
		for _, child := range children(n) {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				for i, s := range stack {
					if s == child {
						cycle = append(append(cycle, stack[i:]...), child)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, r := range roots {
		if color[r] == white && dfs(r) {
			return cycle
		}
	}
	return nil
}

// CycleError builds the CYCLE_DETECTED error for a cycle path.
func CycleError(cycle []*Node) error {
	path := make([]string, len(cycle))
	for i, n := range cycle {
		path[i] = n.ID()
	}
	return errors.New(errors.ErrCodeCycle, "dependency cycle").
		WithCoordinate(path[0]).WithChain(path)
}

// Check fails with CYCLE_DETECTED if any cycle is reachable from the roots.
func (g *Graph) Check() error {
	cycle := FindCycle(g.roots, func(n *Node) []*Node { return n.Children })
	if cycle != nil {
		return CycleError(cycle)
	}
	return nil
}
