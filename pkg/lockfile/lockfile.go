// Package lockfile reads and writes gallade.lock, the resolved dependency
// graph of a project.
//
// The file is TOML with one [[package]] table per resolved coordinate.
// Encoding is canonical: the same resolution always produces the same
// bytes. Files are replaced atomically, so a reader never observes a
// partially written lockfile.
package lockfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/conflict"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/graph"
)

const (
	// FileName is the conventional lockfile name.
	FileName = "gallade.lock"

	// SchemaVersion is the only schema this version reads and writes.
	SchemaVersion = 1
)

const header = "# This file is generated by gallade. Do not edit it by hand.\n\n"

// Entry is one resolved coordinate.
type Entry struct {
	Group        string      `toml:"group"`
	Artifact     string      `toml:"artifact"`
	Version      string      `toml:"version"`
	Classifier   string      `toml:"classifier,omitempty"`
	Type         string      `toml:"type,omitempty"`
	Scope        coord.Scope `toml:"scope"`
	Checksum     string      `toml:"checksum,omitempty"`
	Source       string      `toml:"source,omitempty"`
	Direct       bool        `toml:"direct,omitempty"`
	Dependencies []string    `toml:"dependencies,omitempty"`
	Dependents   []string    `toml:"dependents,omitempty"`
}

// Coordinate returns the coordinate of e.
func (e Entry) Coordinate() coord.Coordinate {
	return coord.Coordinate{
		Group:      e.Group,
		Artifact:   e.Artifact,
		Version:    e.Version,
		Classifier: e.Classifier,
		Type:       e.Type,
		Scope:      e.Scope,
	}
}

// Key returns the library key of e.
func (e Entry) Key() coord.Key { return coord.Key{Group: e.Group, Artifact: e.Artifact} }

// ID returns "group:artifact:version[:classifier]".
func (e Entry) ID() string { return e.Coordinate().String() }

// Sum parses the recorded checksum. The zero Sum means none was recorded.
func (e Entry) Sum() (checksum.Sum, error) {
	if e.Checksum == "" {
		return checksum.Sum{}, nil
	}
	return checksum.Parse(e.Checksum)
}

// Installable reports whether e has an artifact file to download. Entries
// of type pom only contribute dependencies.
func (e Entry) Installable() bool { return e.Type != "pom" }

// Lockfile is the persisted result of a resolution.
type Lockfile struct {
	Schema       int     `toml:"schema"`
	ManifestHash string  `toml:"manifest_hash"`
	Entries      []Entry `toml:"package"`
}

// FromResolution builds the lockfile of res. sums maps coordinate strings
// (see coord.Coordinate.String) to the published artifact checksums.
func FromResolution(res *conflict.Resolution, manifestHash string, sums map[string]checksum.Sum) *Lockfile {
	lf := &Lockfile{Schema: SchemaVersion, ManifestHash: manifestHash}
	for _, n := range res.Nodes() {
		c := res.Coordinate(n)
		e := Entry{
			Group:        c.Group,
			Artifact:     c.Artifact,
			Version:      c.Version,
			Classifier:   c.Classifier,
			Type:         c.Type,
			Scope:        c.Scope,
			Source:       n.Source,
			Direct:       n.Direct(),
			Dependencies: nodeIDs(res.Children(n)),
			Dependents:   nodeIDs(res.Parents(n)),
		}
		if sum, ok := sums[c.String()]; ok && !sum.IsZero() {
			e.Checksum = sum.String()
		}
		lf.Entries = append(lf.Entries, e)
	}
	lf.canonicalize()
	return lf
}

func nodeIDs(nodes []*graph.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	slices.Sort(out)
	return out
}

func (lf *Lockfile) canonicalize() {
	slices.SortFunc(lf.Entries, func(a, b Entry) int {
		return compareEntries(a, b)
	})
	for i := range lf.Entries {
		slices.Sort(lf.Entries[i].Dependencies)
		slices.Sort(lf.Entries[i].Dependents)
	}
}

func compareEntries(a, b Entry) int {
	if c := strings.Compare(a.Group, b.Group); c != 0 {
		return c
	}
	if c := strings.Compare(a.Artifact, b.Artifact); c != 0 {
		return c
	}
	if c := strings.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	return strings.Compare(a.Classifier, b.Classifier)
}

// Find returns the entry for k.
func (lf *Lockfile) Find(k coord.Key) (Entry, bool) {
	for _, e := range lf.Entries {
		if e.Key() == k {
			return e, true
		}
	}
	return Entry{}, false
}

// Roots returns the direct entries.
func (lf *Lockfile) Roots() []Entry {
	var out []Entry
	for _, e := range lf.Entries {
		if e.Direct {
			out = append(out, e)
		}
	}
	return out
}

// Fresh reports whether lf was produced from a manifest with the given hash
// by this schema version. A fresh lockfile lets callers skip resolution.
func Fresh(lf *Lockfile, manifestHash string) bool {
	return lf != nil && lf.Schema == SchemaVersion && lf.ManifestHash == manifestHash
}

// Encode renders lf canonically. lf itself is not modified.
func Encode(lf *Lockfile) ([]byte, error) {
	c := *lf
	c.Entries = make([]Entry, len(lf.Entries))
	for i, e := range lf.Entries {
		e.Dependencies = slices.Clone(e.Dependencies)
		e.Dependents = slices.Clone(e.Dependents)
		c.Entries[i] = e
	}
	c.canonicalize()

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode lockfile: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses and validates lockfile content. Anything unreadable is
// LOCKFILE_CORRUPT.
func Decode(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if _, err := toml.Decode(string(data), &lf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "cannot parse lockfile")
	}
	if lf.Schema != SchemaVersion {
		return nil, errors.New(errors.ErrCodeLockfileCorrupt, "unsupported lockfile schema %d (want %d)", lf.Schema, SchemaVersion)
	}

	seen := make(map[string]bool, len(lf.Entries))
	for i, e := range lf.Entries {
		if err := e.Coordinate().Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "package #%d", i+1)
		}
		scope, err := coord.ParseScope(string(e.Scope))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "package %s", e.ID())
		}
		lf.Entries[i].Scope = scope
		if _, err := e.Sum(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "package %s", e.ID())
		}
		if seen[e.ID()] {
			return nil, errors.New(errors.ErrCodeLockfileCorrupt, "package %s listed twice", e.ID())
		}
		seen[e.ID()] = true
	}
	return &lf, nil
}

// Read loads the lockfile at path. A missing file is not an error: Read
// returns nil, nil.
func Read(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lockfile: %w", err)
	}
	return Decode(data)
}

// Write replaces the lockfile at path atomically: the content is rendered
// in full, written and synced to a temporary file in the same directory and
// renamed over path.
func Write(path string, lf *Lockfile) error {
	data, err := Encode(lf)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write lockfile: %w", err)
	}
	name := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write lockfile: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("write lockfile: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("write lockfile: %w", err)
	}
	return nil
}
