// Package cache stores remote repository responses between runs.
//
// Version listings (maven-metadata.xml) change as libraries are published and
// are cached with a TTL. Descriptors (.pom files) of released versions never
// change and are cached without expiry. Artifacts themselves are not stored
// here; see package store.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one file per key under a directory, for CLI use
//   - [RedisCache]: a shared Redis instance, for teams or CI runners
//   - [NullCache]: stores nothing, used with --no-cache
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key. The bool is false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys for repository responses.
type Keyer interface {
	// VersionsKey is the key of a library's version listing in a repository.
	VersionsKey(repo, group, artifact string) string
	// DescriptorKey is the key of a coordinate's descriptor in a repository.
	DescriptorKey(repo, group, artifact, version string) string
	// HTTPKey is the key of any other raw response.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer builds readable keys; repository URLs are hashed so keys
// stay short and filesystem-safe.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) VersionsKey(repo, group, artifact string) string {
	return hashKey("versions", repo, group, artifact)
}

func (DefaultKeyer) DescriptorKey(repo, group, artifact, version string) string {
	return hashKey("pom", repo, group, artifact, version)
}

func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

var _ Keyer = DefaultKeyer{}
