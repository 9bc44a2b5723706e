package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/httputil"
	"github.com/matzehuels/gallade/pkg/observability"
)

// Request asks for one artifact to be present in the store.
type Request struct {
	Coordinate coord.Coordinate

	// Checksum is the expected checksum of the artifact. When zero, the
	// checksum published by the repository is used.
	Checksum checksum.Sum

	// Source is the repository URL to try first, typically the one
	// recorded in the lockfile.
	Source string
}

// Ensure makes sure the artifact of req is cached and intact, downloading
// it if needed. Concurrent calls for the same coordinate share a single
// download.
//
// A cached object whose bytes no longer match is downloaded again once.
// Downloaded bytes that do not match the expected checksum fail with
// CHECKSUM_MISMATCH and are never retried.
func (s *Store) Ensure(ctx context.Context, req Request) (*Entry, error) {
	v, err, _ := s.group.Do(req.Coordinate.String(), func() (any, error) {
		return s.ensure(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	e := *v.(*Entry)
	return &e, nil
}

// EnsureAll ensures every request with at most Options.Downloads transfers
// at a time. The first failure cancels the remaining work. Entries are
// returned in request order.
func (s *Store) EnsureAll(ctx context.Context, reqs []Request) ([]*Entry, error) {
	out := make([]*Entry, len(reqs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.downloads)
	for i, req := range reqs {
		eg.Go(func() error {
			e, err := s.Ensure(ctx, req)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ensure(ctx context.Context, req Request) (*Entry, error) {
	c := req.Coordinate
	e, err := s.check(c, req.Checksum)
	if err != nil {
		return nil, err
	}
	switch e.State {
	case Verified:
		observability.Store().OnStoreHit(ctx, c.String())
		return e, nil
	case Corrupt:
		observability.Store().OnCorrupt(ctx, c.String())
		s.logger.Warn("cached artifact is corrupt, downloading again", "coordinate", c.String())
		if err := os.Remove(s.refPath(c)); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		// The object is shared by every coordinate with the same bytes, so
		// a corrupt one is useless to all of them.
		if e.Path != "" {
			if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	return s.download(ctx, req)
}

// check hashes the cached object of c. expected, when set, must match too.
func (s *Store) check(c coord.Coordinate, expected checksum.Sum) (*Entry, error) {
	ref, ok, err := s.readRef(c)
	if err != nil {
		return nil, err
	}
	e := &Entry{Coordinate: c, State: Absent}
	if !ok {
		return e, nil
	}
	e.State = Corrupt
	if ref.IsZero() {
		return e, nil
	}
	e.Path = s.objectPath(ref)
	e.Checksum = ref

	f, err := os.Open(e.Path)
	if os.IsNotExist(err) {
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hashes, err := checksum.NewMulti(algorithms(expected)...)
	if err != nil {
		return nil, err
	}
	if e.Size, err = io.Copy(hashes, f); err != nil {
		return nil, err
	}
	if !hashes.Sum(checksum.SHA256).Equal(ref) {
		return e, nil
	}
	if !expected.IsZero() && !hashes.Sum(expected.Algo).Equal(expected) {
		return e, nil
	}
	e.State = Verified
	return e, nil
}

func algorithms(expected checksum.Sum) []checksum.Algorithm {
	if expected.IsZero() || expected.Algo == checksum.SHA256 {
		return []checksum.Algorithm{checksum.SHA256}
	}
	return []checksum.Algorithm{checksum.SHA256, expected.Algo}
}

func (s *Store) download(ctx context.Context, req Request) (*Entry, error) {
	c := req.Coordinate
	id := c.String()
	if s.fetcher == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "not cached and no repository configured").WithCoordinate(id)
	}

	s.mu.Lock()
	s.inflight[id] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}()

	expected := req.Checksum
	if expected.IsZero() {
		sum, err := s.fetcher.Checksum(ctx, c, req.Source)
		switch {
		case err == nil:
			expected = sum
		case errors.Is(err, errors.ErrCodeNotFound):
			s.logger.Warn("no published checksum, recording downloaded bytes", "coordinate", id)
		default:
			return nil, err
		}
	}

	start := time.Now()
	var e *Entry
	err := s.retry.Do(ctx, func() error {
		var err error
		e, err = s.transfer(ctx, req, expected)
		return err
	})
	var size int64
	if e != nil {
		size = e.Size
	}
	observability.Store().OnDownload(ctx, id, size, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// transfer downloads once into tmp/, verifies and commits the object.
func (s *Store) transfer(ctx context.Context, req Request, expected checksum.Sum) (*Entry, error) {
	c := req.Coordinate
	id := c.String()

	rc, source, err := s.fetcher.Open(ctx, c, req.Source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "download-*")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	hashes, err := checksum.NewMulti(algorithms(expected)...)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(io.MultiWriter(tmp, hashes), rc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "download interrupted").WithCoordinate(id))
	}

	if !expected.IsZero() {
		if got := hashes.Sum(expected.Algo); !got.Equal(expected) {
			observability.Store().OnChecksumMismatch(ctx, id)
			return nil, errors.New(errors.ErrCodeChecksumMismatch, "expected %s, got %s", expected, got).WithCoordinate(id)
		}
	}

	if err := tmp.Sync(); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	sum := hashes.Sum(checksum.SHA256)
	obj := s.objectPath(sum)
	if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
		return nil, err
	}
	// Renaming over an existing object replaces it atomically with bytes
	// just verified, whatever state the old file was in.
	if err := os.Rename(tmpName, obj); err != nil {
		return nil, err
	}
	committed = true

	if err := s.writeRef(c, sum); err != nil {
		return nil, err
	}
	s.logger.Debug("downloaded", "coordinate", id, "bytes", n, "source", source)
	return &Entry{Coordinate: c, Path: obj, Checksum: sum, Size: n, State: Verified}, nil
}
