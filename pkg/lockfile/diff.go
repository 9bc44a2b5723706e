package lockfile

import (
	"fmt"
	"strings"
)

// Change is a library whose locked version or checksum changed.
type Change struct {
	Name     string // "group:artifact[:classifier]"
	From, To Entry
}

func (c Change) String() string {
	if c.From.Version == c.To.Version {
		return fmt.Sprintf("%s %s (checksum changed)", c.Name, c.To.Version)
	}
	return fmt.Sprintf("%s %s -> %s", c.Name, c.From.Version, c.To.Version)
}

// Diff lists what changed between two lockfiles.
type Diff struct {
	Added   []Entry
	Removed []Entry
	Changed []Change
}

// Empty reports whether the lockfiles lock the same artifacts.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func (d Diff) String() string {
	var b strings.Builder
	for _, e := range d.Added {
		fmt.Fprintf(&b, "+ %s\n", e.ID())
	}
	for _, e := range d.Removed {
		fmt.Fprintf(&b, "- %s\n", e.ID())
	}
	for _, c := range d.Changed {
		fmt.Fprintf(&b, "~ %s\n", c)
	}
	return b.String()
}

func name(e Entry) string {
	if e.Classifier != "" {
		return e.Key().String() + ":" + e.Classifier
	}
	return e.Key().String()
}

// Diff compares lf with next. A nil lf is treated as empty, so the diff of
// a first lock lists every entry as added.
func (lf *Lockfile) Diff(next *Lockfile) Diff {
	old := make(map[string]Entry)
	if lf != nil {
		for _, e := range lf.Entries {
			old[name(e)] = e
		}
	}

	var d Diff
	seen := make(map[string]bool)
	if next != nil {
		for _, e := range next.Entries {
			n := name(e)
			seen[n] = true
			prev, ok := old[n]
			switch {
			case !ok:
				d.Added = append(d.Added, e)
			case prev.Version != e.Version || prev.Checksum != e.Checksum:
				d.Changed = append(d.Changed, Change{Name: n, From: prev, To: e})
			}
		}
	}
	if lf != nil {
		for _, e := range lf.Entries {
			if !seen[name(e)] {
				d.Removed = append(d.Removed, e)
			}
		}
	}
	return d
}
