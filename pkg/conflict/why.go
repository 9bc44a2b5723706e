package conflict

import (
	"fmt"
	"strings"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/graph"
)

// Explanation describes how a library's version was chosen.
type Explanation struct {
	Key        coord.Key
	Chosen     *graph.Node // nil when the library was pruned
	Reason     Reason
	Overridden []Override
	Paths      [][]string // discovery path of each candidate, chosen first
}

// Why explains the decision for k. ok is false when k never appeared in the
// graph.
func (r *Resolution) Why(k coord.Key) (e Explanation, ok bool) {
	cands := r.Graph.Candidates(k)
	if len(cands) == 0 {
		return Explanation{}, false
	}
	e = Explanation{Key: k, Chosen: r.Chosen[k], Reason: r.reasons[k]}
	if e.Chosen != nil {
		e.Paths = append(e.Paths, e.Chosen.Path)
	}
	for _, o := range r.Overridden {
		if o.Loser.Key() == k {
			e.Overridden = append(e.Overridden, o)
			e.Paths = append(e.Paths, o.Loser.Path)
		}
	}
	return e, true
}

// String renders a multi-line, human-readable explanation.
func (e Explanation) String() string {
	var b strings.Builder
	if e.Chosen == nil {
		fmt.Fprintf(&b, "%s is not part of the resolved graph (only overridden versions required it)\n", e.Key)
	} else {
		fmt.Fprintf(&b, "%s resolved to %s (%s)\n", e.Key, e.Chosen.Version(), describe(e.Reason))
		fmt.Fprintf(&b, "  via %s\n", strings.Join(e.Chosen.Path, " -> "))
	}
	for _, o := range e.Overridden {
		fmt.Fprintf(&b, "  %s rejected\n", o.Loser.Version())
		fmt.Fprintf(&b, "    via %s\n", strings.Join(o.Loser.Path, " -> "))
	}
	return b.String()
}

func describe(r Reason) string {
	switch r {
	case ReasonDirect:
		return "declared directly, which takes precedence over pins and transitive versions"
	case ReasonPinned:
		return "pinned"
	case ReasonNearest:
		return "nearest to the project"
	case ReasonHighest:
		return "highest of the nearest versions"
	default:
		return "no conflict"
	}
}
