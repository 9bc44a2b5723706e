package repository

import (
	"context"
	stderrors "errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/gallade/internal/repotest"
	"github.com/matzehuels/gallade/pkg/cache"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/httputil"
)

var fastRetry = httputil.Policy{Attempts: 3, Delay: time.Millisecond}

func newClient(t *testing.T, repo *repotest.Repo, c cache.Cache) *Client {
	t.Helper()
	client, err := New(Options{URL: repo.URL(), Cache: c, Retry: fastRetry, VersionsTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "repo.example.com"} {
		if _, err := New(Options{URL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestVersions(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "org.slf4j:slf4j-api:1.7.36"})
	repo.Publish(repotest.Artifact{Coord: "org.slf4j:slf4j-api:2.0.9"})

	c := newClient(t, repo, nil)
	got, err := c.Versions(context.Background(), coord.Key{Group: "org.slf4j", Artifact: "slf4j-api"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1.7.36", "2.0.9"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
}

func TestVersionsNotFound(t *testing.T) {
	repo := repotest.New(t)
	c := newClient(t, repo, nil)

	_, err := c.Versions(context.Background(), coord.Key{Group: "no", Artifact: "such"})
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if !stderrors.Is(err, ErrNotFound) {
		t.Error("ErrNotFound sentinel not reachable")
	}
	if hits := repo.Hits(repotest.MetadataPath("no:such")); hits != 1 {
		t.Errorf("404 was retried: %d hits", hits)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0"})
	path := repotest.POMPath("g:a:1.0")
	repo.Fail(path, 2)

	c := newClient(t, repo, nil)
	pom, err := c.Descriptor(context.Background(), coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if pom.ArtifactID != "a" {
		t.Errorf("ArtifactID = %q", pom.ArtifactID)
	}
	if hits := repo.Hits(path); hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestNetworkErrorAfterRetries(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0"})
	path := repotest.POMPath("g:a:1.0")
	repo.Fail(path, 10)

	c := newClient(t, repo, nil)
	_, err := c.Descriptor(context.Background(), coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"})
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Fatalf("err = %v, want NETWORK_ERROR", err)
	}
	if errors.ExitCode(err) != 6 {
		t.Errorf("ExitCode = %d, want 6", errors.ExitCode(err))
	}
	if hits := repo.Hits(path); hits != 3 {
		t.Errorf("hits = %d, want 3", hits)
	}
}

func TestDescriptorCached(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0"})
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	at := coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"}
	for i := 0; i < 2; i++ {
		c := newClient(t, repo, fc)
		pom, err := c.Descriptor(context.Background(), at)
		if err != nil {
			t.Fatal(err)
		}
		if pom.Source != repo.URL() {
			t.Errorf("Source = %q, want %q", pom.Source, repo.URL())
		}
	}
	if hits := repo.Hits(repotest.POMPath("g:a:1.0")); hits != 1 {
		t.Errorf("hits = %d, want 1 (second read from cache)", hits)
	}
}

func TestChecksumFallsBackToSHA1(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0", SHA1Only: true})
	repo.Publish(repotest.Artifact{Coord: "g:b:1.0"})
	repo.Publish(repotest.Artifact{Coord: "g:c:1.0", NoChecksum: true})
	c := newClient(t, repo, nil)
	ctx := context.Background()

	sum, err := c.Checksum(ctx, coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Algo != "sha1" {
		t.Errorf("Algo = %s, want sha1", sum.Algo)
	}

	sum, err = c.Checksum(ctx, coord.Coordinate{Group: "g", Artifact: "b", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Hex != repotest.SHA256(repotest.JarBytes("g:b:1.0")) {
		t.Errorf("sha256 = %s", sum)
	}

	_, err = c.Checksum(ctx, coord.Coordinate{Group: "g", Artifact: "c", Version: "1.0"})
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestOpen(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0", Jar: []byte("bytes")})
	c := newClient(t, repo, nil)

	rc, err := c.Open(context.Background(), coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "bytes" {
		t.Errorf("body = %q", data)
	}
}

func TestRateLimit(t *testing.T) {
	repo := repotest.New(t)
	repo.Publish(repotest.Artifact{Coord: "g:a:1.0"})
	c, err := New(Options{URL: repo.URL(), RateLimit: 20, Burst: 1, Retry: fastRetry})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Versions(context.Background(), coord.Key{Group: "g", Artifact: "a"}); err != nil {
			t.Fatal(err)
		}
	}
	// Burst 1 at 20/s: the 2nd and 3rd requests each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests took %v, limiter not applied", elapsed)
	}
}
