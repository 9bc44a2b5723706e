package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/lockfile"
)

// Text writes lf as an indented tree:
//
//	org.example:app:1.0
//	├── org.slf4j:slf4j-api:2.0.9
//	└── com.h2database:h2:2.2.224 (runtime)
//
// Subtrees that were already expanded are marked "(*)" and not repeated.
func Text(w io.Writer, lf *lockfile.Lockfile) error {
	bw := bufio.NewWriter(w)
	byID := index(lf)
	seen := make(map[string]bool)

	var walk func(id, prefix string, last, top bool)
	walk = func(id, prefix string, last, top bool) {
		e, ok := byID[id]
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		if top {
			branch, indent = "", ""
		}
		if !ok {
			fmt.Fprintf(bw, "%s%s%s (missing)\n", prefix, branch, id)
			return
		}
		label := id + suffix(e)
		if seen[id] && len(e.Dependencies) > 0 {
			fmt.Fprintf(bw, "%s%s%s (*)\n", prefix, branch, label)
			return
		}
		seen[id] = true
		fmt.Fprintf(bw, "%s%s%s\n", prefix, branch, label)
		for i, dep := range e.Dependencies {
			walk(dep, prefix+indent, i == len(e.Dependencies)-1, false)
		}
	}

	for _, root := range lf.Roots() {
		walk(root.ID(), "", true, true)
	}
	return bw.Flush()
}

func suffix(e lockfile.Entry) string {
	switch {
	case e.Scope != coord.ScopeCompile && e.Type != "":
		return fmt.Sprintf(" (%s, %s)", e.Scope, e.Type)
	case e.Scope != coord.ScopeCompile:
		return fmt.Sprintf(" (%s)", e.Scope)
	case e.Type != "":
		return fmt.Sprintf(" (%s)", e.Type)
	}
	return ""
}
