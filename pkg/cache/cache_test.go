package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "missing"); hit || err != nil {
		t.Fatalf("Get(missing) = hit %v, err %v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("<metadata/>"), 0); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("Get(k) = hit %v, err %v", hit, err)
	}
	if string(data) != "<metadata/>" {
		t.Errorf("Get(k) = %q", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "short", []byte("a"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "forever", []byte("b"), 0); err != nil {
		t.Fatal(err)
	}

	if _, hit, _ := c.Get(ctx, "short"); !hit {
		t.Fatal("entry expired too early")
	}

	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("entry should have expired")
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl should never expire")
	}
}

func TestFileCacheSweepAndClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []byte("a"), time.Second)
	c.Set(ctx, "b", []byte("b"), 0)
	corrupt := c.path("c")
	os.MkdirAll(filepath.Dir(corrupt), 0o755)
	os.WriteFile(corrupt, []byte("{not json"), 0o644)

	now = now.Add(time.Hour)
	n, err := c.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if _, hit, _ := c.Get(ctx, "b"); !hit {
		t.Error("Sweep removed a live entry")
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("Clear left entries behind")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Clear removed the cache dir: %v", err)
	}
}

func TestFileCacheNoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	for i := 0; i < 5; i++ {
		if err := c.Set(ctx, "same", []byte(strings.Repeat("x", i)), 0); err != nil {
			t.Fatal(err)
		}
	}
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if strings.HasPrefix(filepath.Base(path), ".tmp-") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.HTTPKey("maven", "search"); got != "http:maven:search" {
		t.Errorf("HTTPKey unexpected: %s", got)
	}

	v1 := k.VersionsKey("https://repo1", "org.slf4j", "slf4j-api")
	v2 := k.VersionsKey("https://repo2", "org.slf4j", "slf4j-api")
	if v1 == v2 {
		t.Error("different repositories should produce different keys")
	}
	if !strings.HasPrefix(v1, "versions:") {
		t.Errorf("VersionsKey unexpected: %s", v1)
	}

	d1 := k.DescriptorKey("r", "g", "a", "1.0")
	d2 := k.DescriptorKey("r", "g", "a", "1.1")
	if d1 == d2 || !strings.HasPrefix(d1, "pom:") {
		t.Errorf("DescriptorKey unexpected: %s, %s", d1, d2)
	}

	// Parts are JSON-encoded, so separators inside parts cannot collide.
	if k.DescriptorKey("r", "g:a", "b", "1") == k.DescriptorKey("r", "g", "a:b", "1") {
		t.Error("ambiguous parts produced the same key")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "gallade:v1:")
	if got := scoped.HTTPKey("maven", "x"); got != "gallade:v1:http:maven:x" {
		t.Errorf("ScopedKeyer HTTPKey unexpected: %s", got)
	}
	if got := scoped.VersionsKey("r", "g", "a"); !strings.HasPrefix(got, "gallade:v1:versions:") {
		t.Errorf("ScopedKeyer VersionsKey should be prefixed: %s", got)
	}

	nilInner := NewScopedKeyer(nil, "p:")
	if got := nilInner.HTTPKey("ns", "k"); got != "p:http:ns:k" {
		t.Errorf("ScopedKeyer with nil inner: %s", got)
	}
}
