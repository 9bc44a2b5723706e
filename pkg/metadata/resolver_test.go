package metadata

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/gallade/internal/repotest"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/httputil"
	"github.com/matzehuels/gallade/pkg/repository"
	"github.com/matzehuels/gallade/pkg/version"
)

func newResolver(t *testing.T, repo *repotest.Repo, opts Options) *Resolver {
	t.Helper()
	client, err := repository.New(repository.Options{
		URL:   repo.URL(),
		Retry: httputil.Policy{Attempts: 2, Delay: time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(repository.NewSet(client), opts)
}

func at(gav string) coord.Coordinate {
	c, err := coord.Parse(gav)
	if err != nil {
		panic(err)
	}
	return c
}

func depSpecs(d *Descriptor) map[string]string {
	out := make(map[string]string)
	for _, dep := range d.Dependencies {
		out[dep.Key().String()] = dep.Spec
	}
	return out
}

func TestDescriptorInheritsFromParent(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{
		Coord:      "org.example:parent:1",
		Packaging:  "pom",
		Properties: map[string]string{"lib.version": "1.2", "other.version": "${lib.version}.1"},
		Managed:    []repotest.Dep{{Coord: "org.lib:lib:${lib.version}"}},
		Deps:       []repotest.Dep{{Coord: "org.common:common:3.0"}},
	})
	repo.Publish(repotest.Artifact{
		Coord:  "org.example:child:1.0",
		Parent: "org.example:parent:1",
		Deps: []repotest.Dep{
			{Coord: "org.lib:lib"},
			{Coord: "org.example:sibling:${project.version}"},
			{Coord: "org.other:other:${other.version}"},
			{Coord: "org.common:common:3.1"},
		},
	})

	r := newResolver(t, repo, Options{})
	d, err := r.Descriptor(context.Background(), at("org.example:child:1.0"))
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"org.lib:lib":         "1.2",
		"org.example:sibling": "1.0",
		"org.other:other":     "1.2.1",
		"org.common:common":   "3.1",
	}
	got := depSpecs(d)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if len(d.Dependencies) != 4 {
		t.Errorf("got %d dependencies, want 4 (child overrides inherited common)", len(d.Dependencies))
	}
	if d.Dependencies[0].Key().String() != "org.common:common" {
		t.Errorf("inherited dependency should keep its position, got %v", d.Dependencies[0])
	}
	if d.Management["org.lib:lib"] != "1.2" {
		t.Errorf("Management = %v", d.Management)
	}
	if d.Source != repo.URL() {
		t.Errorf("Source = %q", d.Source)
	}
}

func TestDescriptorParentDepthGuard(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:p0:1", Packaging: "pom"})
	for i := 1; i <= 6; i++ {
		repo.Publish(repotest.Artifact{
			Coord:     fmt.Sprintf("g:p%d:1", i),
			Parent:    fmt.Sprintf("g:p%d:1", i-1),
			Packaging: "pom",
		})
	}

	r := newResolver(t, repo, Options{MaxParentDepth: 4})
	_, err := r.Descriptor(context.Background(), at("g:p6:1"))
	if !errors.Is(err, errors.ErrCodeUnresolved) {
		t.Fatalf("err = %v, want UNRESOLVED_COORDINATE", err)
	}
	var e *errors.Error
	if !asError(err, &e) || len(e.Chain) == 0 {
		t.Errorf("error should name the chain: %v", err)
	}

	r = newResolver(t, repo, Options{})
	if _, err := r.Descriptor(context.Background(), at("g:p6:1")); err != nil {
		t.Errorf("default depth should allow 7 levels: %v", err)
	}
}

func TestDescriptorSelfParent(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1", Parent: "g:a:1"})

	r := newResolver(t, repo, Options{})
	_, err := r.Descriptor(context.Background(), at("g:a:1"))
	if !errors.Is(err, errors.ErrCodeUnresolved) {
		t.Fatalf("err = %v, want UNRESOLVED_COORDINATE", err)
	}
}

func TestDescriptorImportsBOM(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{
		Coord:     "org.bom:bom:1",
		Packaging: "pom",
		Managed:   []repotest.Dep{{Coord: "org.lib:lib:2.0"}, {Coord: "org.lib:extra:5.0"}},
	})
	repo.Publish(repotest.Artifact{
		Coord: "org.app:app:1",
		Managed: []repotest.Dep{
			{Coord: "org.bom:bom:1", Scope: "import", Type: "pom"},
			{Coord: "org.lib:extra:6.0"},
		},
		Deps: []repotest.Dep{{Coord: "org.lib:lib"}, {Coord: "org.lib:extra"}},
	})

	r := newResolver(t, repo, Options{})
	d, err := r.Descriptor(context.Background(), at("org.app:app:1"))
	if err != nil {
		t.Fatal(err)
	}
	got := depSpecs(d)
	if got["org.lib:lib"] != "2.0" {
		t.Errorf("lib = %q, want 2.0 from BOM", got["org.lib:lib"])
	}
	if got["org.lib:extra"] != "6.0" {
		t.Errorf("extra = %q, want own management to beat BOM", got["org.lib:extra"])
	}
}

func TestDescriptorMissingVersion(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:compile:1", Deps: []repotest.Dep{{Coord: "x:y"}}})
	repo.Publish(repotest.Artifact{Coord: "g:testonly:1", Deps: []repotest.Dep{{Coord: "x:y", Scope: "test"}}})

	r := newResolver(t, repo, Options{})
	ctx := context.Background()

	_, err := r.Descriptor(ctx, at("g:compile:1"))
	if !errors.Is(err, errors.ErrCodeUnresolved) {
		t.Errorf("err = %v, want UNRESOLVED_COORDINATE", err)
	}

	d, err := r.Descriptor(ctx, at("g:testonly:1"))
	if err != nil {
		t.Fatalf("non-propagating dependency without version should be tolerated: %v", err)
	}
	if len(d.Dependencies) != 1 || d.Dependencies[0].Scope != coord.ScopeTest {
		t.Errorf("Dependencies = %+v", d.Dependencies)
	}
}

func TestDescriptorNotFound(t *testing.T) {
	repo := repotest.New(t)
	r := newResolver(t, repo, Options{})

	_, err := r.Descriptor(context.Background(), at("no:such:1"))
	if !errors.Is(err, errors.ErrCodeUnresolved) {
		t.Fatalf("err = %v, want UNRESOLVED_COORDINATE", err)
	}
	if errors.ExitCode(err) != 3 {
		t.Errorf("ExitCode = %d, want 3", errors.ExitCode(err))
	}
}

func TestResolveVersion(t *testing.T) {
	repo := repotest.New(t)
	for _, v := range []string{"1.0", "1.5", "2.0"} {
		repo.Publish(repotest.Artifact{Coord: "g:a:" + v})
	}
	r := newResolver(t, repo, Options{})
	ctx := context.Background()
	k := coord.Key{Group: "g", Artifact: "a"}

	got, err := r.ResolveVersion(ctx, k, version.Exact("9.9"))
	if err != nil || got != "9.9" {
		t.Fatalf("exact = %q, %v", got, err)
	}
	if repo.TotalHits() != 0 {
		t.Errorf("exact spec went to the network")
	}

	spec, _ := version.ParseSpec("[1.0,2.0)")
	got, err = r.ResolveVersion(ctx, k, spec)
	if err != nil || got != "1.5" {
		t.Fatalf("range = %q, %v", got, err)
	}
	latest, _ := version.ParseSpec("latest")
	if got, _ := r.ResolveVersion(ctx, k, latest); got != "2.0" {
		t.Errorf("latest = %q", got)
	}
	if hits := repo.Hits(repotest.MetadataPath("g:a")); hits != 1 {
		t.Errorf("version listing fetched %d times, want 1", hits)
	}

	none, _ := version.ParseSpec("[3.0,)")
	_, err = r.ResolveVersion(ctx, k, none)
	if !errors.Is(err, errors.ErrCodeUnresolved) {
		t.Errorf("err = %v, want UNRESOLVED_COORDINATE", err)
	}

	if s := r.Stats(); s.VersionFetches != 1 || s.MemoHits < 2 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestConcurrentDescriptorFetchedOnce(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:parent:1", Packaging: "pom"})
	repo.Publish(repotest.Artifact{Coord: "g:a:1", Parent: "g:parent:1"})
	r := newResolver(t, repo, Options{})

	release := repo.Hold()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Descriptor(context.Background(), at("g:a:1"))
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if hits := repo.Hits(repotest.POMPath("g:a:1")); hits != 1 {
		t.Errorf("descriptor fetched %d times, want 1", hits)
	}
	if hits := repo.Hits(repotest.POMPath("g:parent:1")); hits != 1 {
		t.Errorf("parent fetched %d times, want 1", hits)
	}
	if s := r.Stats(); s.DescriptorFetches != 2 {
		t.Errorf("DescriptorFetches = %d, want 2", s.DescriptorFetches)
	}
}
