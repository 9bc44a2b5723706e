// Package coord defines library coordinates and the dependency declarations
// that reference them.
//
// A [Coordinate] names one concrete artifact (group, artifact, version and an
// optional classifier). Conflict resolution groups coordinates by [Key], which
// drops the version: two coordinates with the same key are alternatives and
// exactly one survives into the lockfile.
package coord

import (
	"fmt"
	"strings"

	"github.com/matzehuels/gallade/pkg/errors"
)

// DefaultType is the artifact type assumed when none is declared.
const DefaultType = "jar"

// Key identifies a library independent of its version.
type Key struct {
	Group    string
	Artifact string
}

// String returns "group:artifact".
func (k Key) String() string { return k.Group + ":" + k.Artifact }

// Less orders keys by group, then artifact.
func (k Key) Less(o Key) bool {
	if k.Group != o.Group {
		return k.Group < o.Group
	}
	return k.Artifact < o.Artifact
}

// Validate checks both components.
func (k Key) Validate() error {
	if err := errors.ValidateGroupID(k.Group); err != nil {
		return err
	}
	return errors.ValidateArtifactID(k.Artifact)
}

// ParseKey parses "group:artifact".
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Key{}, errors.New(errors.ErrCodeInvalidInput, "expected group:artifact, got %q", s)
	}
	k := Key{Group: parts[0], Artifact: parts[1]}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Coordinate names a concrete artifact. It is a value type; copies are
// independent.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Type       string
	Scope      Scope
}

// Key returns the version-independent identity of c.
func (c Coordinate) Key() Key { return Key{Group: c.Group, Artifact: c.Artifact} }

// ID returns "group:artifact:version", the identity used for memoization.
func (c Coordinate) ID() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// String returns "group:artifact:version[:classifier]".
func (c Coordinate) String() string {
	if c.Classifier != "" {
		return c.ID() + ":" + c.Classifier
	}
	return c.ID()
}

// Ext returns the file extension of the artifact.
func (c Coordinate) Ext() string {
	if c.Type == "" || c.Type == "bundle" {
		return DefaultType
	}
	if c.Type == "test-jar" {
		return "jar"
	}
	return c.Type
}

// FileName returns "artifact-version[-classifier].ext".
func (c Coordinate) FileName() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Ext()
}

// Dir returns the Maven2 layout directory "group/path/artifact/version".
func (c Coordinate) Dir() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version
}

// Path returns the Maven2 layout path of the artifact file.
func (c Coordinate) Path() string { return c.Dir() + "/" + c.FileName() }

// Validate checks every component for characters that are unsafe in paths
// or URLs.
func (c Coordinate) Validate() error {
	if err := errors.ValidateGroupID(c.Group); err != nil {
		return err
	}
	if err := errors.ValidateArtifactID(c.Artifact); err != nil {
		return err
	}
	if err := errors.ValidateVersion(c.Version); err != nil {
		return err
	}
	if err := errors.ValidateClassifier(c.Classifier); err != nil {
		return err
	}
	return errors.ValidatePath(c.Path())
}

// Parse parses "group:artifact:version[:classifier]".
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, errors.New(errors.ErrCodeInvalidInput,
			"expected group:artifact:version[:classifier], got %q", s)
	}
	c := Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Less orders coordinates by group, artifact, version string and classifier.
// It is a canonical ordering for output, not a version comparison.
func (c Coordinate) Less(o Coordinate) bool {
	if c.Group != o.Group {
		return c.Group < o.Group
	}
	if c.Artifact != o.Artifact {
		return c.Artifact < o.Artifact
	}
	if c.Version != o.Version {
		return c.Version < o.Version
	}
	return c.Classifier < o.Classifier
}

// Exclusion removes a (group, artifact) from a dependency's transitive
// closure. Either side may be "*".
type Exclusion struct {
	Group    string
	Artifact string
}

// Matches reports whether e excludes k.
func (e Exclusion) Matches(k Key) bool {
	return (e.Group == "*" || e.Group == k.Group) &&
		(e.Artifact == "*" || e.Artifact == k.Artifact)
}

func (e Exclusion) String() string { return e.Group + ":" + e.Artifact }

// ParseExclusion parses "group:artifact" where either part may be "*".
func ParseExclusion(s string) (Exclusion, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Exclusion{}, errors.New(errors.ErrCodeInvalidInput, "expected group:artifact exclusion, got %q", s)
	}
	return Exclusion{Group: parts[0], Artifact: parts[1]}, nil
}

// Excluded reports whether any exclusion in list matches k.
func Excluded(list []Exclusion, k Key) bool {
	for _, e := range list {
		if e.Matches(k) {
			return true
		}
	}
	return false
}

// Dependency is a declared edge: a library key, a version requirement and
// the scope it is needed in. Spec holds the raw requirement string; package
// version parses it.
type Dependency struct {
	Group      string
	Artifact   string
	Spec       string
	Classifier string
	Type       string
	Scope      Scope
	Optional   bool
	Exclusions []Exclusion
}

// Key returns the library key of d.
func (d Dependency) Key() Key { return Key{Group: d.Group, Artifact: d.Artifact} }

// At returns the coordinate selected for d at version v.
func (d Dependency) At(v string) Coordinate {
	return Coordinate{
		Group:      d.Group,
		Artifact:   d.Artifact,
		Version:    v,
		Classifier: d.Classifier,
		Type:       d.Type,
		Scope:      d.Scope,
	}
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s:%s:%s", d.Group, d.Artifact, d.Spec)
}
