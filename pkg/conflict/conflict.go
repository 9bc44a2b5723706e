package conflict

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/graph"
	"github.com/matzehuels/gallade/pkg/observability"
	"github.com/matzehuels/gallade/pkg/version"
)

// Reason explains why a candidate won.
type Reason string

const (
	ReasonUnique  Reason = "unique"  // only one version was requested
	ReasonDirect  Reason = "direct"  // declared in the manifest
	ReasonPinned  Reason = "pinned"  // selected by a pin
	ReasonNearest Reason = "nearest" // closest to a direct dependency
	ReasonHighest Reason = "highest" // highest of the nearest candidates
)

// Override records a candidate that lost.
type Override struct {
	Loser  *graph.Node
	Winner *graph.Node
	Reason Reason
}

func (o Override) String() string {
	return fmt.Sprintf("%s overridden by %s (%s)", o.Loser.ID(), o.Winner.Version(), o.Reason)
}

// Resolution is the conflict-free view of a candidate graph.
type Resolution struct {
	Graph *graph.Graph

	// Chosen holds exactly one node per library reachable from the roots.
	Chosen map[coord.Key]*graph.Node

	// Overridden lists losing candidates, sorted by loser coordinate.
	Overridden []Override

	// Pruned lists chosen nodes that only losing candidates depended on.
	Pruned []*graph.Node

	// UnusedPins lists pinned libraries that did not appear in the graph.
	UnusedPins []coord.Key

	reasons  map[coord.Key]Reason
	children map[*graph.Node][]*graph.Node
	parents  map[*graph.Node][]*graph.Node
	scopes   map[*graph.Node]coord.Scope
}

// Resolve applies the conflict policy to g. pins maps libraries to exact
// versions.
func Resolve(ctx context.Context, g *graph.Graph, pins map[coord.Key]string) (*Resolution, error) {
	res := &Resolution{
		Graph:    g,
		Chosen:   make(map[coord.Key]*graph.Node),
		reasons:  make(map[coord.Key]Reason),
		children: make(map[*graph.Node][]*graph.Node),
		parents:  make(map[*graph.Node][]*graph.Node),
		scopes:   make(map[*graph.Node]coord.Scope),
	}

	for _, k := range g.Keys() {
		cands := g.Candidates(k)
		pin, pinned := pins[k]
		winner, reason, err := choose(k, cands, pin, pinned)
		if err != nil {
			return nil, err
		}
		res.Chosen[k] = winner
		res.reasons[k] = reason
		for _, c := range cands {
			if c == winner {
				continue
			}
			res.Overridden = append(res.Overridden, Override{Loser: c, Winner: winner, Reason: reason})
			observability.Resolve().OnConflict(ctx, k.String(), winner.Version(), c.Version(), string(reason))
		}
	}
	for k := range pins {
		if len(g.Candidates(k)) == 0 {
			res.UnusedPins = append(res.UnusedPins, k)
		}
	}
	slices.SortFunc(res.UnusedPins, func(a, b coord.Key) int { return strings.Compare(a.String(), b.String()) })
	slices.SortFunc(res.Overridden, func(a, b Override) int {
		return strings.Compare(a.Loser.ID(), b.Loser.ID())
	})

	res.repoint()
	if cycle := graph.FindCycle(res.Roots(), res.Children); cycle != nil {
		return nil, graph.CycleError(cycle)
	}
	res.prune()
	res.propagateScopes()
	return res, nil
}

func choose(k coord.Key, cands []*graph.Node, pin string, pinned bool) (*graph.Node, Reason, error) {
	var direct []*graph.Node
	for _, c := range cands {
		if c.Direct() {
			direct = append(direct, c)
		}
	}

	switch {
	case len(direct) > 0:
		winner := highest(direct)
		if pinned && version.Compare(pin, winner.Version()) != 0 {
			return nil, "", errors.New(errors.ErrCodeVersionConflict,
				"pin %s contradicts direct dependency on %s: direct dependencies take precedence over pins, so change the [deps] entry or drop the pin",
				pin, winner.Version()).
				WithCoordinate(k.String())
		}
		if len(cands) == 1 {
			return winner, ReasonUnique, nil
		}
		return winner, ReasonDirect, nil

	case pinned:
		for _, c := range cands {
			if version.Compare(pin, c.Version()) == 0 {
				return c, ReasonPinned, nil
			}
		}
		requested := make([]string, len(cands))
		for i, c := range cands {
			requested[i] = c.Version()
		}
		return nil, "", errors.New(errors.ErrCodeVersionConflict,
			"stale pin %s: requested versions are %s", pin, strings.Join(requested, ", ")).
			WithCoordinate(k.String())
	}

	if distinct(cands) == 1 {
		return cands[0], ReasonUnique, nil
	}

	minDepth := cands[0].Depth
	for _, c := range cands[1:] {
		minDepth = min(minDepth, c.Depth)
	}
	var nearest []*graph.Node
	for _, c := range cands {
		if c.Depth == minDepth {
			nearest = append(nearest, c)
		}
	}
	if distinct(nearest) == 1 {
		return nearest[0], ReasonNearest, nil
	}
	return highest(nearest), ReasonHighest, nil
}

// highest returns the candidate with the highest version; the earliest
// discovered wins a tie.
func highest(nodes []*graph.Node) *graph.Node {
	best := nodes[0]
	for _, n := range nodes[1:] {
		if version.Compare(n.Version(), best.Version()) > 0 {
			best = n
		}
	}
	return best
}

func distinct(nodes []*graph.Node) int {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		seen[n.Version()] = true
	}
	return len(seen)
}

// repoint rebuilds edges so every edge ends at a chosen node.
func (r *Resolution) repoint() {
	for _, n := range r.Chosen {
		var out []*graph.Node
		for _, c := range n.Children {
			target := r.Chosen[c.Key()]
			if target == n || slices.Contains(out, target) {
				continue
			}
			out = append(out, target)
		}
		r.children[n] = out
	}
}

// prune drops chosen nodes that cannot be reached from the roots through
// chosen nodes.
func (r *Resolution) prune() {
	reached := make(map[*graph.Node]bool)
	queue := r.Roots()
	for _, n := range queue {
		reached[n] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range r.children[n] {
			if !reached[c] {
				reached[c] = true
				queue = append(queue, c)
			}
		}
	}

	for _, k := range r.Graph.Keys() {
		n := r.Chosen[k]
		if reached[n] {
			continue
		}
		r.Pruned = append(r.Pruned, n)
		delete(r.Chosen, k)
		delete(r.children, n)
	}

	for _, n := range r.Nodes() {
		for _, c := range r.children[n] {
			r.parents[c] = append(r.parents[c], n)
		}
	}
}

// propagateScopes computes the effective scope of every chosen node from
// the re-pointed edges: the widest scope over all paths.
func (r *Resolution) propagateScopes() {
	queue := r.Roots()
	for _, n := range queue {
		r.scopes[n] = n.Dependency.Scope
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, original := range n.Children {
			c := r.Chosen[original.Key()]
			if c == nil || c == n {
				continue
			}
			s := r.scopes[n].Inherit(r.Graph.EdgeScope(n, original))
			if cur, ok := r.scopes[c]; ok && cur.Rank() <= s.Rank() {
				continue
			}
			r.scopes[c] = s
			queue = append(queue, c)
		}
	}
}

// Roots returns the direct dependencies in declaration order.
func (r *Resolution) Roots() []*graph.Node {
	return r.Graph.Roots()
}

// Nodes returns the chosen nodes sorted by coordinate.
func (r *Resolution) Nodes() []*graph.Node {
	out := make([]*graph.Node, 0, len(r.Chosen))
	for _, n := range r.Chosen {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *graph.Node) int {
		switch {
		case a.Coordinate.Less(b.Coordinate):
			return -1
		case b.Coordinate.Less(a.Coordinate):
			return 1
		}
		return 0
	})
	return out
}

// Children returns the chosen dependencies of n in declaration order.
func (r *Resolution) Children(n *graph.Node) []*graph.Node {
	return r.children[n]
}

// Parents returns the chosen nodes depending on n, sorted by coordinate.
func (r *Resolution) Parents(n *graph.Node) []*graph.Node {
	return r.parents[n]
}

// Scope returns the effective scope of a chosen node.
func (r *Resolution) Scope(n *graph.Node) coord.Scope {
	if s, ok := r.scopes[n]; ok {
		return s
	}
	return n.Coordinate.Scope
}

// Coordinate returns the coordinate of a chosen node with its effective
// scope.
func (r *Resolution) Coordinate(n *graph.Node) coord.Coordinate {
	c := n.Coordinate
	c.Scope = r.Scope(n)
	return c
}
