package repository

import (
	"context"
	"io"

	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/version"
)

// Set consults several repositories in configuration order.
type Set struct {
	clients []*Client
}

// NewSet returns a set over clients. Order matters: earlier repositories
// are preferred.
func NewSet(clients ...*Client) *Set {
	return &Set{clients: clients}
}

// Clients returns the repositories in order.
func (s *Set) Clients() []*Client { return s.clients }

// Versions returns the union of the versions every repository lists for k.
// Repositories without a listing are skipped; if none has one the result is
// a NOT_FOUND error.
func (s *Set) Versions(ctx context.Context, k coord.Key) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	found := false
	var lastErr error

	for _, c := range s.clients {
		vs, err := c.Versions(ctx, k)
		if errors.Is(err, errors.ErrCodeNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		found = true
		for _, v := range vs {
			if !seen[v] {
				seen[v] = true
				all = append(all, v)
			}
		}
	}
	if !found {
		return nil, s.notFound(lastErr, k.String())
	}
	return all, nil
}

// Search returns the versions of k across all repositories, sorted
// ascending.
func (s *Set) Search(ctx context.Context, k coord.Key) ([]string, error) {
	vs, err := s.Versions(ctx, k)
	if err != nil {
		return nil, err
	}
	version.Sort(vs)
	return vs, nil
}

// Descriptor returns the descriptor from the first repository that has it.
func (s *Set) Descriptor(ctx context.Context, at coord.Coordinate) (*POM, error) {
	var lastErr error
	for _, c := range s.clients {
		pom, err := c.Descriptor(ctx, at)
		if errors.Is(err, errors.ErrCodeNotFound) {
			lastErr = err
			continue
		}
		return pom, err
	}
	return nil, s.notFound(lastErr, at.ID())
}

// Checksum returns the published checksum of the artifact, asking the
// repository named by source first.
func (s *Set) Checksum(ctx context.Context, at coord.Coordinate, source string) (checksum.Sum, error) {
	var lastErr error
	for _, c := range s.ordered(source) {
		sum, err := c.Checksum(ctx, at)
		if errors.Is(err, errors.ErrCodeNotFound) {
			lastErr = err
			continue
		}
		return sum, err
	}
	return checksum.Sum{}, s.notFound(lastErr, at.String()+" checksum")
}

// Open starts downloading the artifact, asking the repository named by
// source first. It returns the URL of the repository serving the bytes.
func (s *Set) Open(ctx context.Context, at coord.Coordinate, source string) (io.ReadCloser, string, error) {
	var lastErr error
	for _, c := range s.ordered(source) {
		rc, err := c.Open(ctx, at)
		if errors.Is(err, errors.ErrCodeNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return rc, c.URL(), nil
	}
	return nil, "", s.notFound(lastErr, at.String())
}

func (s *Set) ordered(source string) []*Client {
	if source == "" {
		return s.clients
	}
	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.URL() == source {
			out = append(out, c)
		}
	}
	for _, c := range s.clients {
		if c.URL() != source {
			out = append(out, c)
		}
	}
	return out
}

func (s *Set) notFound(cause error, what string) error {
	if len(s.clients) == 0 {
		return errors.New(errors.ErrCodeNotFound, "%s: no repositories configured", what)
	}
	if len(s.clients) == 1 && cause != nil {
		return cause
	}
	return errors.Wrap(errors.ErrCodeNotFound, cause, "%s not found in any of %d repositories", what, len(s.clients))
}
