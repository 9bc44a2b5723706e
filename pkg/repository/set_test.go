package repository

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/matzehuels/gallade/internal/repotest"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
)

func TestSetVersionsUnion(t *testing.T) {
	central := repotest.New(t)
	central.Publish(repotest.Artifact{Coord: "g:a:1.0"})
	central.Publish(repotest.Artifact{Coord: "g:a:1.10"})
	mirror := repotest.New(t)
	mirror.Publish(repotest.Artifact{Coord: "g:a:1.10"})
	mirror.Publish(repotest.Artifact{Coord: "g:a:1.2"})

	set := NewSet(newClient(t, central, nil), newClient(t, mirror, nil))
	got, err := set.Search(context.Background(), coord.Key{Group: "g", Artifact: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1.0", "1.2", "1.10"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %v, want %v", got, want)
	}
}

func TestSetDescriptorFallsThrough(t *testing.T) {
	empty := repotest.New(t)
	second := repotest.New(t)
	second.Publish(repotest.Artifact{Coord: "g:a:1.0"})

	set := NewSet(newClient(t, empty, nil), newClient(t, second, nil))
	pom, err := set.Descriptor(context.Background(), coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if pom.Source != second.URL() {
		t.Errorf("Source = %q, want %q", pom.Source, second.URL())
	}

	_, err = set.Descriptor(context.Background(), coord.Coordinate{Group: "g", Artifact: "zz", Version: "1.0"})
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestSetOpenPrefersSource(t *testing.T) {
	first := repotest.New(t)
	first.Publish(repotest.Artifact{Coord: "g:a:1.0", Jar: []byte("first")})
	second := repotest.New(t)
	second.Publish(repotest.Artifact{Coord: "g:a:1.0", Jar: []byte("second")})

	set := NewSet(newClient(t, first, nil), newClient(t, second, nil))
	at := coord.Coordinate{Group: "g", Artifact: "a", Version: "1.0"}

	rc, src, err := set.Open(context.Background(), at, second.URL())
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "second" || src != second.URL() {
		t.Errorf("Open() = %q from %s", data, src)
	}

	rc, src, err = set.Open(context.Background(), at, "")
	if err != nil {
		t.Fatal(err)
	}
	data, _ = io.ReadAll(rc)
	rc.Close()
	if string(data) != "first" || src != first.URL() {
		t.Errorf("Open() = %q from %s", data, src)
	}
}

func TestEmptySet(t *testing.T) {
	_, err := NewSet().Versions(context.Background(), coord.Key{Group: "g", Artifact: "a"})
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
