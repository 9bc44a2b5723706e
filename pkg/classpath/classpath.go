// Package classpath assembles Java classpaths from a lockfile and the
// artifacts cached in the store.
//
// Which resolved entries take part depends on the target:
//
//	compile  compile, provided and system scoped entries
//	runtime  compile and runtime scoped entries
//	test     every entry
//
// Entries appear in lockfile order, so the same lockfile always produces
// the same classpath.
package classpath

import (
	"fmt"
	"os"
	"strings"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/lockfile"
)

// Target selects the classpath to build.
type Target string

const (
	Compile Target = "compile"
	Runtime Target = "runtime"
	Test    Target = "test"
)

// ParseTarget parses a target name. The empty string is runtime.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(s)) {
	case "", Runtime:
		return Runtime, nil
	case Compile:
		return Compile, nil
	case Test:
		return Test, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown classpath target %q (want compile, runtime or test)", s)
}

// Includes reports whether entries of scope s belong on the classpath of t.
func (t Target) Includes(s coord.Scope) bool {
	switch t {
	case Compile:
		return s == coord.ScopeCompile || s == coord.ScopeProvided || s == coord.ScopeSystem
	case Runtime:
		return s == coord.ScopeCompile || s == coord.ScopeRuntime
	case Test:
		return true
	}
	return false
}

// Locator finds the cached file of a coordinate after checking its bytes
// against sum. *store.Store implements it.
type Locator interface {
	VerifiedPath(c coord.Coordinate, sum checksum.Sum) (string, error)
}

// Build returns the artifact paths of every installable entry of lf that
// belongs on the classpath of t. A missing artifact fails with NOT_FOUND
// and one whose bytes differ from the locked checksum with
// CHECKSUM_MISMATCH.
func Build(lf *lockfile.Lockfile, loc Locator, t Target) ([]string, error) {
	if lf == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no lockfile; run `gallade lock` first")
	}
	var paths []string
	for _, e := range lf.Entries {
		if !e.Installable() || !t.Includes(e.Scope) {
			continue
		}
		sum, err := e.Sum()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "invalid checksum").WithCoordinate(e.ID())
		}
		path, err := loc.VerifiedPath(e.Coordinate(), sum)
		if err != nil {
			if errors.Is(err, errors.ErrCodeNotFound) {
				return nil, errors.Wrap(errors.ErrCodeNotFound, err, "artifact missing from the cache; run `gallade install`").
					WithCoordinate(e.ID())
			}
			return nil, fmt.Errorf("locate %s: %w", e.ID(), err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Join joins paths with the platform list separator.
func Join(paths []string) string {
	return strings.Join(paths, string(os.PathListSeparator))
}
