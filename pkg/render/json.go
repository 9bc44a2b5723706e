package render

import (
	"encoding/json"
	"io"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/lockfile"
)

// Graph is the JSON form of a locked graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one resolved coordinate.
type Node struct {
	ID       string      `json:"id"`
	Group    string      `json:"group"`
	Artifact string      `json:"artifact"`
	Version  string      `json:"version"`
	Scope    coord.Scope `json:"scope"`
	Type     string      `json:"type,omitempty"`
	Direct   bool        `json:"direct,omitempty"`
	Checksum string      `json:"checksum,omitempty"`
	Source   string      `json:"source,omitempty"`
}

// Edge points from a dependent to its dependency.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FromLockfile converts lf to its JSON form.
func FromLockfile(lf *lockfile.Lockfile) Graph {
	g := Graph{Nodes: make([]Node, 0, len(lf.Entries)), Edges: []Edge{}}
	for _, e := range lf.Entries {
		g.Nodes = append(g.Nodes, Node{
			ID:       e.ID(),
			Group:    e.Group,
			Artifact: e.Artifact,
			Version:  e.Version,
			Scope:    e.Scope,
			Type:     e.Type,
			Direct:   e.Direct,
			Checksum: e.Checksum,
			Source:   e.Source,
		})
		for _, dep := range e.Dependencies {
			g.Edges = append(g.Edges, Edge{From: e.ID(), To: dep})
		}
	}
	return g
}

// JSON writes lf as indented JSON.
func JSON(w io.Writer, lf *lockfile.Lockfile) error {
	data, err := json.MarshalIndent(FromLockfile(lf), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
