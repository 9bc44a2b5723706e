package conflict

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/graph"
	"github.com/matzehuels/gallade/pkg/observability"
)

// fixture assembles candidate graphs by hand.
type fixture struct {
	t *testing.T
	g *graph.Graph
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, g: graph.New()}
}

// root adds a direct dependency.
func (f *fixture) root(gav string, scope coord.Scope) *graph.Node {
	return f.add(gav, nil, scope)
}

// dep adds gav as a compile dependency of parent, or connects the existing
// node.
func (f *fixture) dep(parent *graph.Node, gav string) *graph.Node {
	return f.add(gav, parent, coord.ScopeCompile)
}

func (f *fixture) add(gav string, parent *graph.Node, scope coord.Scope) *graph.Node {
	f.t.Helper()
	c, err := coord.Parse(gav)
	if err != nil {
		f.t.Fatal(err)
	}
	if n, ok := f.g.Node(c.String()); ok {
		f.g.Connect(parent, n, scope)
		return n
	}
	c.Scope = scope
	n := &graph.Node{
		Coordinate: c,
		Dependency: coord.Dependency{Group: c.Group, Artifact: c.Artifact, Spec: c.Version, Scope: scope},
		Path:       []string{c.String()},
	}
	if parent != nil {
		c.Scope = parent.Coordinate.Scope.Inherit(scope)
		n.Coordinate = c
		n.Depth = parent.Depth + 1
		n.Path = append(slices.Clone(parent.Path), c.String())
	}
	f.g.Add(n)
	if parent != nil {
		f.g.Connect(parent, n, scope)
	}
	return n
}

func (f *fixture) resolve(pins map[coord.Key]string) (*Resolution, error) {
	return Resolve(context.Background(), f.g, pins)
}

func key(s string) coord.Key {
	k, err := coord.ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func chosen(t *testing.T, res *Resolution, k string) string {
	t.Helper()
	n := res.Chosen[key(k)]
	if n == nil {
		return ""
	}
	return n.Version()
}

func TestNearestWins(t *testing.T) {
	f := newFixture(t)
	b := f.root("g:b:1", coord.ScopeCompile)
	c := f.root("g:c:1", coord.ScopeCompile)
	d := f.root("g:d:1", coord.ScopeCompile)
	f.dep(f.dep(b, "g:p:1"), "g:x:1.0")
	f.dep(f.dep(c, "g:q:1"), "g:x:2.0")
	f.dep(d, "g:x:1.5")

	res, err := f.resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := chosen(t, res, "g:x"); got != "1.5" {
		t.Errorf("x = %s, want 1.5", got)
	}
	if len(res.Overridden) != 2 {
		t.Fatalf("Overridden = %v", res.Overridden)
	}
	for _, o := range res.Overridden {
		if o.Reason != ReasonNearest || o.Winner.Version() != "1.5" {
			t.Errorf("override = %v", o)
		}
	}
}

func TestResolvePolicy(t *testing.T) {
	tests := []struct {
		name   string
		pins   map[coord.Key]string
		direct string // direct version of g:x, if any
		want   string
		reason Reason
		code   errors.Code
	}{
		{name: "highest among equally near", want: "2.0", reason: ReasonHighest},
		{name: "direct beats deeper higher", direct: "1.0", want: "1.0", reason: ReasonDirect},
		{name: "pin beats highest", pins: map[coord.Key]string{key("g:x"): "1.0"}, want: "1.0", reason: ReasonPinned},
		{name: "stale pin", pins: map[coord.Key]string{key("g:x"): "3.0"}, code: errors.ErrCodeVersionConflict},
		{name: "pin agreeing with direct", direct: "1.0", pins: map[coord.Key]string{key("g:x"): "1.0"}, want: "1.0", reason: ReasonDirect},
		{name: "pin contradicting direct", direct: "1.0", pins: map[coord.Key]string{key("g:x"): "2.0"}, code: errors.ErrCodeVersionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.direct != "" {
				f.root("g:x:"+tt.direct, coord.ScopeCompile)
			}
			f.dep(f.root("g:a:1", coord.ScopeCompile), "g:x:1.0")
			f.dep(f.root("g:b:1", coord.ScopeCompile), "g:x:2.0")

			res, err := f.resolve(tt.pins)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Fatalf("err = %v, want %s", err, tt.code)
				}
				if errors.ExitCode(err) != 4 {
					t.Errorf("ExitCode = %d, want 4", errors.ExitCode(err))
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := chosen(t, res, "g:x"); got != tt.want {
				t.Errorf("x = %s, want %s", got, tt.want)
			}
			if e, _ := res.Why(key("g:x")); e.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", e.Reason, tt.reason)
			}
		})
	}
}

func TestPinContradictingDirectNamesRule(t *testing.T) {
	build := func() *fixture {
		f := newFixture(t)
		f.root("g:x:1.0", coord.ScopeCompile)
		f.dep(f.root("g:a:1", coord.ScopeCompile), "g:x:2.0")
		return f
	}

	_, err := build().resolve(map[coord.Key]string{key("g:x"): "2.0"})
	if !errors.Is(err, errors.ErrCodeVersionConflict) {
		t.Fatalf("err = %v, want VERSION_CONFLICT", err)
	}
	msg := errors.UserMessage(err)
	for _, want := range []string{"pin 2.0", "direct dependency on 1.0", "direct dependencies take precedence over pins"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q: %s", want, msg)
		}
	}

	res, err := build().resolve(map[coord.Key]string{key("g:x"): "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := res.Why(key("g:x"))
	if out := e.String(); !strings.Contains(out, "g:x resolved to 1.0 (declared directly, which takes precedence over pins") {
		t.Errorf("Why output:\n%s", out)
	}
}

func TestUniqueCandidate(t *testing.T) {
	f := newFixture(t)
	a := f.root("g:a:1", coord.ScopeCompile)
	f.dep(a, "g:x:1")

	res, err := f.resolve(map[coord.Key]string{key("g:unused"): "1"})
	if err != nil {
		t.Fatal(err)
	}
	if e, _ := res.Why(key("g:x")); e.Reason != ReasonUnique {
		t.Errorf("reason = %s", e.Reason)
	}
	if len(res.Overridden) != 0 {
		t.Errorf("Overridden = %v", res.Overridden)
	}
	if len(res.UnusedPins) != 1 || res.UnusedPins[0] != key("g:unused") {
		t.Errorf("UnusedPins = %v", res.UnusedPins)
	}
}

func TestRepointAndPrune(t *testing.T) {
	f := newFixture(t)
	a := f.root("g:a:1", coord.ScopeCompile)
	b := f.root("g:b:1", coord.ScopeCompile)
	x1 := f.dep(a, "g:x:1")
	f.dep(x1, "g:only-old:1")
	f.dep(b, "g:x:2")
	c := f.dep(f.root("g:c:1", coord.ScopeCompile), "g:mid:1")
	f.dep(c, "g:x:3")

	res, err := f.resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	x := res.Chosen[key("g:x")]
	if x.Version() != "2" {
		t.Fatalf("x = %s, want 2", x.Version())
	}
	if _, ok := res.Chosen[key("g:only-old")]; ok {
		t.Error("g:only-old should be pruned")
	}
	if len(res.Pruned) != 1 || res.Pruned[0].ID() != "g:only-old:1" {
		t.Errorf("Pruned = %v", res.Pruned)
	}

	var parents []string
	for _, p := range res.Parents(x) {
		parents = append(parents, p.ID())
	}
	if !slices.Equal(parents, []string{"g:a:1", "g:b:1", "g:mid:1"}) {
		t.Errorf("Parents(x) = %v", parents)
	}
	if kids := res.Children(res.Chosen[key("g:mid")]); len(kids) != 1 || kids[0] != x {
		t.Errorf("mid should point at the chosen x")
	}

	e, ok := res.Why(key("g:only-old"))
	if !ok || e.Chosen != nil {
		t.Errorf("Why(pruned) = %+v, %v", e, ok)
	}
	if _, ok := res.Why(key("no:such")); ok {
		t.Error("Why should report unknown keys")
	}
}

func TestRepointedCycle(t *testing.T) {
	f := newFixture(t)
	b := f.root("g:b:1", coord.ScopeCompile)
	d := f.root("g:d:1", coord.ScopeCompile)
	f.dep(b, "g:c:1")
	c2 := f.dep(d, "g:c:2")
	f.dep(c2, "g:b:3")

	_, err := f.resolve(nil)
	if !errors.Is(err, errors.ErrCodeCycle) {
		t.Fatalf("err = %v, want CYCLE_DETECTED", err)
	}
}

func TestEffectiveScopes(t *testing.T) {
	f := newFixture(t)
	junit := f.root("g:junit:4", coord.ScopeTest)
	f.dep(junit, "g:shared:1")
	f.dep(junit, "g:hamcrest:1")
	app := f.root("g:app:1", coord.ScopeCompile)
	f.dep(f.dep(app, "g:mid:1"), "g:shared:1")
	rt := f.root("g:driver:1", coord.ScopeRuntime)
	f.dep(rt, "g:pool:1")

	res, err := f.resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]coord.Scope{
		"g:junit":    coord.ScopeTest,
		"g:hamcrest": coord.ScopeTest,
		"g:shared":   coord.ScopeCompile,
		"g:mid":      coord.ScopeCompile,
		"g:driver":   coord.ScopeRuntime,
		"g:pool":     coord.ScopeRuntime,
	}
	for k, want := range tests {
		if got := res.Scope(res.Chosen[key(k)]); got != want {
			t.Errorf("%s scope = %s, want %s", k, got, want)
		}
	}
	if c := res.Coordinate(res.Chosen[key("g:shared")]); c.Scope != coord.ScopeCompile {
		t.Errorf("Coordinate scope = %s", c.Scope)
	}
}

func TestWhyString(t *testing.T) {
	f := newFixture(t)
	f.dep(f.root("g:a:1", coord.ScopeCompile), "g:x:1.0")
	f.dep(f.root("g:b:1", coord.ScopeCompile), "g:x:2.0")

	res, err := f.resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	e, ok := res.Why(key("g:x"))
	if !ok {
		t.Fatal("Why(g:x) not found")
	}
	out := e.String()
	for _, want := range []string{
		"g:x resolved to 2.0 (highest of the nearest versions)",
		"via g:b:1 -> g:x:2.0",
		"1.0 rejected",
		"via g:a:1 -> g:x:1.0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Why output missing %q:\n%s", want, out)
		}
	}
}

type recordingHooks struct {
	observability.NoopResolveHooks
	mu        sync.Mutex
	conflicts []string
}

func (h *recordingHooks) OnConflict(_ context.Context, key, winner, loser, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conflicts = append(h.conflicts, key+" "+winner+">"+loser+" "+reason)
}

func TestConflictHook(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetResolveHooks(hooks)
	t.Cleanup(observability.Reset)

	f := newFixture(t)
	f.dep(f.root("g:a:1", coord.ScopeCompile), "g:x:1.0")
	f.dep(f.root("g:b:1", coord.ScopeCompile), "g:x:2.0")
	if _, err := f.resolve(nil); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(hooks.conflicts, []string{"g:x 2.0>1.0 highest"}) {
		t.Errorf("conflicts = %v", hooks.conflicts)
	}
}
