// Package manifest loads the project manifest, gallade.toml.
//
// A manifest declares the direct dependencies of a project, optional
// version pins and optional extra repositories:
//
//	[project]
//	name = "demo"
//	version = "0.1.0"
//
//	[deps]
//	"com.google.guava:guava" = "31.1-jre"
//	"org.slf4j:slf4j-api" = { version = "[1.7,2.0)", scope = "runtime" }
//	"junit:junit:4.13.2" = { scope = "test", exclusions = ["org.hamcrest:*"] }
//
//	[pins]
//	"com.fasterxml.jackson.core:jackson-databind" = "2.15.2"
//
//	[repositories]
//	internal = "https://maven.example.com/releases"
//
// Loading never touches the network. Every problem is reported as
// INVALID_MANIFEST.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/version"
)

// FileName is the conventional manifest file name.
const FileName = "gallade.toml"

// Project describes the project owning the manifest.
type Project struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Repository is an extra remote repository declared by the manifest.
type Repository struct {
	Name string
	URL  string
}

// Manifest is a parsed gallade.toml.
type Manifest struct {
	Project      Project
	Repositories []Repository

	deps []coord.Dependency
	pins map[coord.Key]string
}

type document struct {
	Project      Project           `toml:"project"`
	Deps         map[string]any    `toml:"deps"`
	Pins         map[string]any    `toml:"pins"`
	Repositories map[string]string `toml:"repositories"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeManifest, err, "no manifest at %s", path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse parses manifest content.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifest, err, "invalid TOML")
	}
	for _, k := range md.Undecoded() {
		// Dependency and pin values decode into untyped maps; their
		// fields are checked by parseDependency and the pin loop.
		if k[0] == "deps" || k[0] == "pins" {
			continue
		}
		return nil, errors.New(errors.ErrCodeManifest, "unknown key %q", k.String())
	}

	m := &Manifest{Project: doc.Project, pins: make(map[coord.Key]string)}
	seen := make(map[coord.Key]string)

	for _, name := range tableKeys(md, "deps") {
		d, err := parseDependency(name, doc.Deps[name])
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d.Key()]; dup {
			return nil, errors.New(errors.ErrCodeManifest, "duplicate dependency %s (declared as %q and %q)", d.Key(), prev, name).
				WithCoordinate(d.Key().String())
		}
		seen[d.Key()] = name
		m.deps = append(m.deps, d)
	}

	for _, name := range tableKeys(md, "pins") {
		k, err := coord.ParseKey(name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeManifest, err, "invalid pin %q", name)
		}
		v, ok := doc.Pins[name].(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeManifest, "pin %s must be a version string", name).WithCoordinate(name)
		}
		if err := errors.ValidateVersion(v); err != nil {
			return nil, errors.Wrap(errors.ErrCodeManifest, err, "invalid pin %s", name).WithCoordinate(name)
		}
		m.pins[k] = v
	}

	for _, name := range tableKeys(md, "repositories") {
		url := doc.Repositories[name]
		if err := errors.ValidateURL(url); err != nil {
			return nil, errors.Wrap(errors.ErrCodeManifest, err, "repository %s", name)
		}
		m.Repositories = append(m.Repositories, Repository{Name: name, URL: url})
	}
	return m, nil
}

// tableKeys returns the keys of a top-level table in file order.
func tableKeys(md toml.MetaData, table string) []string {
	var keys []string
	for _, k := range md.Keys() {
		if len(k) == 2 && k[0] == table {
			keys = append(keys, k[1])
		}
	}
	return keys
}

func parseDependency(name string, raw any) (coord.Dependency, error) {
	fail := func(format string, args ...any) (coord.Dependency, error) {
		return coord.Dependency{}, errors.New(errors.ErrCodeManifest, "dependency %q: "+format, append([]any{name}, args...)...).
			WithCoordinate(name)
	}

	parts := strings.Split(name, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fail("expected group:artifact or group:artifact:version")
	}
	d := coord.Dependency{Group: parts[0], Artifact: parts[1], Scope: coord.ScopeCompile}
	if err := d.Key().Validate(); err != nil {
		return coord.Dependency{}, errors.Wrap(errors.ErrCodeManifest, err, "dependency %q", name).WithCoordinate(name)
	}
	if len(parts) == 3 {
		d.Spec = parts[2]
	}

	switch v := raw.(type) {
	case string:
		if d.Spec != "" {
			return fail("version given both in the key and the value")
		}
		d.Spec = v
	case map[string]any:
		for field, value := range v {
			if err := setField(&d, field, value); err != nil {
				return coord.Dependency{}, errors.Wrap(errors.ErrCodeManifest, err, "dependency %q", name).WithCoordinate(name)
			}
		}
		slices.SortFunc(d.Exclusions, func(a, b coord.Exclusion) int { return strings.Compare(a.String(), b.String()) })
	default:
		return fail("expected a version string or a table, got %T", raw)
	}

	if d.Spec == "" {
		return fail("no version")
	}
	if _, err := version.ParseSpec(d.Spec); err != nil {
		return coord.Dependency{}, errors.Wrap(errors.ErrCodeManifest, err, "dependency %q", name).WithCoordinate(name)
	}
	return d, nil
}

func setField(d *coord.Dependency, field string, value any) error {
	str := func() (string, error) {
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%s must be a string", field)
		}
		return s, nil
	}

	switch field {
	case "version":
		s, err := str()
		if err != nil {
			return err
		}
		if d.Spec != "" {
			return fmt.Errorf("version given both in the key and the table")
		}
		d.Spec = s
	case "scope":
		s, err := str()
		if err != nil {
			return err
		}
		scope, err := coord.ParseScope(s)
		if err != nil {
			return err
		}
		if scope == coord.ScopeImport {
			return fmt.Errorf("scope import is only valid in published descriptors")
		}
		d.Scope = scope
	case "classifier":
		s, err := str()
		if err != nil {
			return err
		}
		if err := errors.ValidateClassifier(s); err != nil {
			return err
		}
		d.Classifier = s
	case "type":
		s, err := str()
		if err != nil {
			return err
		}
		d.Type = s
	case "optional":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("optional must be a boolean")
		}
		d.Optional = b
	case "exclusions":
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("exclusions must be a list of strings")
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("exclusions must be a list of strings")
			}
			ex, err := coord.ParseExclusion(s)
			if err != nil {
				return err
			}
			d.Exclusions = append(d.Exclusions, ex)
		}
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// Dependencies returns the direct dependencies in declaration order.
func (m *Manifest) Dependencies() []coord.Dependency {
	return slices.Clone(m.deps)
}

// Pins returns a copy of the pinned versions.
func (m *Manifest) Pins() map[coord.Key]string {
	out := make(map[coord.Key]string, len(m.pins))
	for k, v := range m.pins {
		out[k] = v
	}
	return out
}

// Hash returns "sha256:<hex>" over the canonical form of the dependencies
// and pins. Formatting, comments and declaration order do not affect it.
func (m *Manifest) Hash() string {
	lines := make([]string, 0, len(m.deps)+len(m.pins))
	for _, d := range m.deps {
		ex := make([]string, len(d.Exclusions))
		for i, e := range d.Exclusions {
			ex[i] = e.String()
		}
		lines = append(lines, fmt.Sprintf("dep %s|%s|%s|%s|%s|%t|%s",
			d.Key(), d.Spec, d.Scope, d.Classifier, d.Type, d.Optional, strings.Join(ex, ",")))
	}
	for k, v := range m.pins {
		lines = append(lines, fmt.Sprintf("pin %s|%s", k, v))
	}
	slices.Sort(lines)

	h := sha256.New()
	h.Write([]byte("gallade-manifest/1\n"))
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
