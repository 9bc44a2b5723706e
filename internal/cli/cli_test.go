package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/gallade/internal/repotest"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/lockfile"
	"github.com/matzehuels/gallade/pkg/observability"
	"github.com/matzehuels/gallade/pkg/pipeline"
	"github.com/matzehuels/gallade/pkg/render"
)

// project is a manifest directory backed by a fake repository publishing
// app:1.0 -> {log:[1.0,2.0), db:2.0 (runtime)} and db:2.0 -> log:1.2.
type project struct {
	dir      string
	manifest string
	cache    string
	repo     *repotest.Repo
}

func newProject(t *testing.T) *project {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:log:1.2"})
	repo.Publish(repotest.Artifact{Coord: "g:log:1.5"})
	repo.Publish(repotest.Artifact{Coord: "g:log:2.0"})
	repo.Publish(repotest.Artifact{Coord: "g:db:2.0", Deps: []repotest.Dep{{Coord: "g:log:1.2"}}})
	repo.Publish(repotest.Artifact{Coord: "g:app:1.0", Deps: []repotest.Dep{
		{Coord: "g:log:[1.0,2.0)"},
		{Coord: "g:db:2.0", Scope: "runtime"},
	}})

	dir := t.TempDir()
	p := &project{
		dir:      dir,
		manifest: filepath.Join(dir, "gallade.toml"),
		cache:    filepath.Join(dir, "cache"),
		repo:     repo,
	}
	p.write(t, `[project]
name = "demo"

[deps]
"g:app" = "1.0"
`)
	return p
}

func (p *project) write(t *testing.T, manifest string) {
	t.Helper()
	if err := os.WriteFile(p.manifest, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
}

// run executes one gallade command line against p and returns stdout.
func (p *project) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{
		"--manifest", p.manifest,
		"--cache-dir", p.cache,
		"--repositories", p.repo.URL(),
		"--retry-attempts", "1",
	}, args...))

	err := root.ExecuteContext(context.Background())
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return out.String(), err
}

func (p *project) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := p.run(t, args...)
	if err != nil {
		t.Fatalf("gallade %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestLockAndInstall(t *testing.T) {
	p := newProject(t)

	out := p.mustRun(t, "install")
	for _, want := range []string{"Locked demo", "3 packages", "+ g:app:1.0", "Installed 3 artifacts"} {
		if !strings.Contains(out, want) {
			t.Errorf("install output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(p.dir, lockfile.FileName)); err != nil {
		t.Fatalf("lockfile not written: %v", err)
	}

	p.repo.ResetHits()
	out = p.mustRun(t, "lock")
	if !strings.Contains(out, "up to date") {
		t.Errorf("second lock should reuse the lockfile:\n%s", out)
	}
	if hits := p.repo.TotalHits(); hits != 0 {
		t.Errorf("fresh lock made %d requests, want 0", hits)
	}
}

func TestTree(t *testing.T) {
	p := newProject(t)
	p.mustRun(t, "lock")

	out := p.mustRun(t, "tree")
	want := strings.Join([]string{
		"g:app:1.0",
		"├── g:db:2.0 (runtime)",
		"│   └── g:log:1.5",
		"└── g:log:1.5",
	}, "\n") + "\n"
	if out != want {
		t.Errorf("tree =\n%s\nwant\n%s", out, want)
	}

	out = p.mustRun(t, "tree", "--format", "json")
	var g render.Graph
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		t.Fatalf("tree json: %v", err)
	}
	if len(g.Nodes) != 3 || len(g.Edges) != 3 {
		t.Errorf("json graph has %d nodes and %d edges, want 3 and 3", len(g.Nodes), len(g.Edges))
	}

	dot := filepath.Join(p.dir, "deps.dot")
	p.mustRun(t, "tree", "--format", "dot", "-o", dot)
	data, err := os.ReadFile(dot)
	if err != nil || !strings.HasPrefix(string(data), "digraph") {
		t.Errorf("dot file = %q, %v", data, err)
	}

	if _, err := p.run(t, "tree", "--format", "png"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown format: err = %v, want INVALID_INPUT", err)
	}
}

func TestTreeWithoutLockfile(t *testing.T) {
	p := newProject(t)
	_, err := p.run(t, "tree")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if !strings.Contains(errors.UserMessage(err), "gallade lock") {
		t.Errorf("UserMessage = %q, want a hint to lock", errors.UserMessage(err))
	}
}

func TestWhy(t *testing.T) {
	p := newProject(t)

	out := p.mustRun(t, "why", "g:log")
	for _, want := range []string{"g:log resolved to 1.5", "1.2 rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("why output missing %q:\n%s", want, out)
		}
	}

	if _, err := p.run(t, "why", "g:nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown library: err = %v, want NOT_FOUND", err)
	}
	if _, err := p.run(t, "why", "not-a-key"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad key: err = %v, want INVALID_INPUT", err)
	}
}

func TestSearch(t *testing.T) {
	p := newProject(t)

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"search", "g:log"}, []string{"1.2", "1.5", "2.0"}},
		{[]string{"search", "g:log", "-n", "1"}, []string{"2.0"}},
		{[]string{"search", "g:app"}, []string{"1.0"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			got := lines(p.mustRun(t, tt.args...))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := p.run(t, "search", "g:missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown library: err = %v, want NOT_FOUND", err)
	}
}

func TestClasspath(t *testing.T) {
	p := newProject(t)

	if _, err := p.run(t, "classpath"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("classpath before lock: err = %v, want NOT_FOUND", err)
	}

	p.mustRun(t, "lock")
	if _, err := p.run(t, "classpath"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("classpath before install: err = %v, want NOT_FOUND", err)
	}

	p.mustRun(t, "install")
	tests := []struct {
		scope string
		want  int
	}{
		{"runtime", 3},
		{"compile", 2},
		{"test", 3},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			out := strings.TrimSpace(p.mustRun(t, "classpath", "--scope", tt.scope))
			paths := strings.Split(out, string(os.PathListSeparator))
			if len(paths) != tt.want {
				t.Fatalf("classpath = %v, want %d entries", paths, tt.want)
			}
			for _, path := range paths {
				if !strings.HasPrefix(path, p.cache) {
					t.Errorf("%s is outside the cache %s", path, p.cache)
				}
			}
		})
	}

	out := strings.TrimSpace(p.mustRun(t, "classpath"))
	first := strings.Split(out, string(os.PathListSeparator))[0]
	if err := os.WriteFile(first, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.run(t, "classpath"); !errors.Is(err, errors.ErrCodeChecksumMismatch) {
		t.Errorf("classpath over a corrupt artifact: err = %v, want CHECKSUM_MISMATCH", err)
	}
	p.mustRun(t, "install")
	p.mustRun(t, "classpath")
}

func TestCacheCommands(t *testing.T) {
	p := newProject(t)
	p.mustRun(t, "install")

	if out := strings.TrimSpace(p.mustRun(t, "cache", "path")); out != p.cache {
		t.Errorf("cache path = %q, want %q", out, p.cache)
	}
	if got := lines(p.mustRun(t, "cache", "list")); len(got) != 3 {
		t.Errorf("cache list = %v, want 3 entries", got)
	}
	if got := lines(p.mustRun(t, "cache", "list", "g:log")); len(got) != 1 || got[0] != "1.5" {
		t.Errorf("cache list g:log = %v, want [1.5]", got)
	}
	if out := p.mustRun(t, "cache", "verify"); !strings.Contains(out, "Verified 3 artifacts") {
		t.Errorf("cache verify:\n%s", out)
	}
	if out := p.mustRun(t, "cache", "prune"); !strings.Contains(out, "Pruned 0 artifacts") {
		t.Errorf("cache prune with everything locked:\n%s", out)
	}

	out := p.mustRun(t, "cache", "remove", "g:db:2.0", "g:db:9.9")
	if !strings.Contains(out, "Removed g:db:2.0") || !strings.Contains(out, "g:db:9.9 is not cached") {
		t.Errorf("cache remove:\n%s", out)
	}

	if out := p.mustRun(t, "cache", "clear"); !strings.Contains(out, "Cleared 2 cached artifacts") {
		t.Errorf("cache clear:\n%s", out)
	}
	if got := lines(p.mustRun(t, "cache", "list")); len(got) != 0 {
		t.Errorf("cache list after clear = %v", got)
	}
}

func TestCachePruneDropsUnlocked(t *testing.T) {
	p := newProject(t)
	p.mustRun(t, "install")

	// db alone locks db:2.0 and log:1.2, so app and log:1.5 go.
	p.write(t, `[project]
name = "demo"

[deps]
"g:db" = "2.0"
`)
	p.mustRun(t, "lock")

	out := p.mustRun(t, "cache", "prune")
	if !strings.Contains(out, "Pruned 2 artifacts") {
		t.Errorf("cache prune:\n%s", out)
	}
	if got := lines(p.mustRun(t, "cache", "list")); len(got) != 1 || got[0] != "g:db:2.0" {
		t.Errorf("cache list after prune = %v, want [g:db:2.0]", got)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		args     []string
		want     int
	}{
		{"frozen without lockfile", "", []string{"install", "--frozen"}, 1},
		{"force and frozen", "", []string{"install", "--force", "--frozen"}, 1},
		{"bad manifest", "[deps]\n\"g:app\" = { scope = \"bogus\" }\n", []string{"lock"}, 2},
		{"unresolvable", "[deps]\n\"g:app\" = \"[5.0,)\"\n", []string{"lock"}, 3},
		{"bad config", "", []string{"lock", "--workers", "-1"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t)
			if tt.manifest != "" {
				p.write(t, tt.manifest)
			}
			_, err := p.run(t, tt.args...)
			if got := errors.ExitCode(err); got != tt.want {
				t.Errorf("exit code = %d (%v), want %d", got, err, tt.want)
			}
		})
	}
}

func TestMetricsFile(t *testing.T) {
	t.Cleanup(observability.Reset)
	p := newProject(t)
	path := filepath.Join(p.dir, "gallade.prom")

	p.mustRun(t, "lock", "--metrics-file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), "gallade_resolve_duration_seconds") {
		t.Errorf("metrics file lacks resolve metrics:\n%s", data)
	}
}

func TestVersionCommand(t *testing.T) {
	p := newProject(t)
	out := p.mustRun(t, "version")
	if !strings.HasPrefix(out, "version: ") {
		t.Errorf("version = %q", out)
	}
}

func TestCacheDirs(t *testing.T) {
	c := New(io.Discard, LogInfo)
	if got := c.cacheDir(); got != pipeline.DefaultCacheDir() {
		t.Errorf("default cacheDir = %q, want %q", got, pipeline.DefaultCacheDir())
	}

	c.Config.CacheDir = "/var/cache/gallade"
	if got, want := c.artifactsDir(), filepath.Join("/var/cache/gallade", "artifacts"); got != want {
		t.Errorf("artifactsDir = %q, want %q", got, want)
	}
	if got, want := c.responsesDir(), filepath.Join("/var/cache/gallade", "http"); got != want {
		t.Errorf("responsesDir = %q, want %q", got, want)
	}
}
