package coord

import (
	"fmt"
	"strings"
)

// Scope controls which classpath a dependency is needed on and whether it
// propagates transitively.
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeTest     Scope = "test"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
	ScopeImport   Scope = "import"
)

// ParseScope parses a scope name. The empty string is compile.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeCompile:
		return ScopeCompile, nil
	case ScopeRuntime:
		return ScopeRuntime, nil
	case ScopeTest:
		return ScopeTest, nil
	case ScopeProvided:
		return ScopeProvided, nil
	case ScopeSystem:
		return ScopeSystem, nil
	case ScopeImport:
		return ScopeImport, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Transitive reports whether a dependency declared with this scope by a
// library is inherited by that library's consumers.
func (s Scope) Transitive() bool {
	switch s {
	case ScopeTest, ScopeProvided, ScopeSystem, ScopeImport:
		return false
	}
	return true
}

// Inherit returns the scope of a transitive dependency declared with child
// scope by a library that was itself pulled in with scope s.
func (s Scope) Inherit(child Scope) Scope {
	switch {
	case s == ScopeTest:
		return ScopeTest
	case s == ScopeProvided:
		return ScopeProvided
	case s == ScopeRuntime || child == ScopeRuntime:
		return ScopeRuntime
	}
	return ScopeCompile
}

// Rank orders scopes from widest (compile) to narrowest. Conflict reporting
// uses it to pick the scope of a merged entry.
func (s Scope) Rank() int {
	switch s {
	case ScopeCompile, "":
		return 0
	case ScopeProvided:
		return 1
	case ScopeRuntime:
		return 2
	case ScopeSystem:
		return 3
	case ScopeTest:
		return 4
	}
	return 5
}
