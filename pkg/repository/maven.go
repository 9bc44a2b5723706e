package repository

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/version"
)

// Versions returns every version the repository lists for k, in listing
// order with duplicates removed.
func (c *Client) Versions(ctx context.Context, k coord.Key) ([]string, error) {
	path := groupPath(k.Group) + "/" + k.Artifact + "/maven-metadata.xml"
	key := c.keyer.VersionsKey(c.URL(), k.Group, k.Artifact)

	data, err := c.cached(ctx, "versions", key, c.ttl, func() ([]byte, error) {
		return c.get(ctx, path)
	})
	if err != nil {
		return nil, c.classify(err, k.String()+" versions")
	}

	md, err := parseMetadata(data)
	if err != nil {
		_ = c.cache.Delete(ctx, key)
		return nil, c.classify(err, k.String()+" versions")
	}

	seen := make(map[string]bool, len(md.Versioning.Versions))
	out := make([]string, 0, len(md.Versioning.Versions))
	for _, v := range md.Versioning.Versions {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	c.logger.Debug("listed versions", "key", k, "count", len(out), "repository", c.name)
	return out, nil
}

// Descriptor fetches and parses the POM of c at its exact version.
// Released descriptors are cached forever; snapshots use the versions TTL.
func (c *Client) Descriptor(ctx context.Context, at coord.Coordinate) (*POM, error) {
	pomCoord := at
	pomCoord.Classifier = ""
	pomCoord.Type = "pom"
	key := c.keyer.DescriptorKey(c.URL(), at.Group, at.Artifact, at.Version)

	ttl := time.Duration(0)
	if version.IsSnapshot(at.Version) {
		ttl = c.ttl
	}

	data, err := c.cached(ctx, "descriptor", key, ttl, func() ([]byte, error) {
		return c.get(ctx, pomCoord.Path())
	})
	if err != nil {
		return nil, c.classify(err, at.ID())
	}

	pom, err := ParsePOM(data)
	if err != nil {
		_ = c.cache.Delete(ctx, key)
		return nil, c.classify(err, at.ID())
	}
	pom.Source = c.URL()
	return pom, nil
}

// Checksum fetches the published checksum of the artifact file, trying
// sha256 before sha1.
func (c *Client) Checksum(ctx context.Context, at coord.Coordinate) (checksum.Sum, error) {
	for _, algo := range checksum.Preferred {
		data, err := c.get(ctx, at.Path()+algo.Ext())
		if stderrors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return checksum.Sum{}, c.classify(err, at.String()+algo.Ext())
		}
		sum, err := checksum.ParsePublished(algo, data)
		if err != nil {
			return checksum.Sum{}, c.classify(err, at.String()+algo.Ext())
		}
		return sum, nil
	}
	return checksum.Sum{}, c.classify(ErrNotFound, at.String()+" checksum")
}

// Open starts downloading the artifact file of at.
func (c *Client) Open(ctx context.Context, at coord.Coordinate) (io.ReadCloser, error) {
	rc, err := c.open(ctx, at.Path())
	if err != nil {
		return nil, c.classify(err, at.String())
	}
	return rc, nil
}

func groupPath(group string) string {
	return strings.ReplaceAll(group, ".", "/")
}
