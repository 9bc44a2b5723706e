package metadata

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/observability"
	"github.com/matzehuels/gallade/pkg/repository"
	"github.com/matzehuels/gallade/pkg/version"
)

// DefaultMaxParentDepth bounds parent and BOM import chains.
const DefaultMaxParentDepth = 16

// Source serves raw repository metadata. *repository.Set implements it.
type Source interface {
	Versions(ctx context.Context, k coord.Key) ([]string, error)
	Descriptor(ctx context.Context, at coord.Coordinate) (*repository.POM, error)
}

// Options configures a [Resolver].
type Options struct {
	MaxParentDepth int
	Logger         *log.Logger
}

// Stats counts remote work done by a resolver.
type Stats struct {
	VersionFetches    int64 // version listings fetched from the source
	DescriptorFetches int64 // descriptors (including parents and BOMs) fetched
	MemoHits          int64 // requests answered from the per-run memo
}

// Resolver resolves versions and descriptors. It is safe for concurrent use.
type Resolver struct {
	src      Source
	maxDepth int
	logger   *log.Logger

	mu          sync.Mutex
	versions    map[coord.Key][]string
	raw         map[string]*repository.POM
	descriptors map[string]*Descriptor
	group       singleflight.Group

	versionFetches    atomic.Int64
	descriptorFetches atomic.Int64
	memoHits          atomic.Int64
}

// New creates a resolver over src.
func New(src Source, opts Options) *Resolver {
	if opts.MaxParentDepth <= 0 {
		opts.MaxParentDepth = DefaultMaxParentDepth
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Resolver{
		src:         src,
		maxDepth:    opts.MaxParentDepth,
		logger:      opts.Logger,
		versions:    make(map[coord.Key][]string),
		raw:         make(map[string]*repository.POM),
		descriptors: make(map[string]*Descriptor),
	}
}

// Stats returns a snapshot of the resolver's counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		VersionFetches:    r.versionFetches.Load(),
		DescriptorFetches: r.descriptorFetches.Load(),
		MemoHits:          r.memoHits.Load(),
	}
}

// ResolveVersion picks the version of k that satisfies s. Exact specs are
// returned without consulting the repository.
func (r *Resolver) ResolveVersion(ctx context.Context, k coord.Key, s version.Spec) (string, error) {
	if s.Kind() == version.KindExact {
		return s.Version(), nil
	}
	available, err := r.Versions(ctx, k)
	if err != nil {
		return "", err
	}
	v, ok := s.Select(available)
	if !ok {
		return "", errors.New(errors.ErrCodeUnresolved,
			"no version of %s satisfies %s (%d available)", k, s, len(available)).
			WithCoordinate(k.String())
	}
	r.logger.Debug("selected version", "key", k, "spec", s.String(), "version", v)
	return v, nil
}

// Versions returns the version listing of k, fetching it at most once per
// run.
func (r *Resolver) Versions(ctx context.Context, k coord.Key) ([]string, error) {
	r.mu.Lock()
	if vs, ok := r.versions[k]; ok {
		r.mu.Unlock()
		r.memoHits.Add(1)
		return vs, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("versions:"+k.String(), func() (any, error) {
		r.mu.Lock()
		if vs, ok := r.versions[k]; ok {
			r.mu.Unlock()
			return vs, nil
		}
		r.mu.Unlock()

		start := time.Now()
		r.versionFetches.Add(1)
		vs, err := r.src.Versions(ctx, k)
		observability.Resolve().OnFetch(ctx, "versions", k.String(), time.Since(start), err)
		if err != nil {
			return nil, unresolved(err, k.String())
		}

		r.mu.Lock()
		r.versions[k] = vs
		r.mu.Unlock()
		return vs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Descriptor returns the effective descriptor of at.
func (r *Resolver) Descriptor(ctx context.Context, at coord.Coordinate) (*Descriptor, error) {
	id := at.ID()
	r.mu.Lock()
	if d, ok := r.descriptors[id]; ok {
		r.mu.Unlock()
		r.memoHits.Add(1)
		return d, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("descriptor:"+id, func() (any, error) {
		r.mu.Lock()
		if d, ok := r.descriptors[id]; ok {
			r.mu.Unlock()
			return d, nil
		}
		r.mu.Unlock()

		m, err := r.effective(ctx, at, nil)
		if err != nil {
			return nil, err
		}
		d, err := m.descriptor(at)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.descriptors[id] = d
		r.mu.Unlock()
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Descriptor), nil
}

// pom fetches the raw descriptor of at once per run. Raw fetches never call
// back into the resolver, so concurrent callers cannot wait on each other in
// a loop.
func (r *Resolver) pom(ctx context.Context, at coord.Coordinate) (*repository.POM, error) {
	id := at.ID()
	r.mu.Lock()
	if p, ok := r.raw[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do("pom:"+id, func() (any, error) {
		r.mu.Lock()
		if p, ok := r.raw[id]; ok {
			r.mu.Unlock()
			return p, nil
		}
		r.mu.Unlock()

		start := time.Now()
		r.descriptorFetches.Add(1)
		p, err := r.src.Descriptor(ctx, at)
		observability.Resolve().OnFetch(ctx, "descriptor", id, time.Since(start), err)
		if err != nil {
			return nil, unresolved(err, id)
		}
		r.logger.Debug("fetched descriptor", "coordinate", id, "source", p.Source)

		r.mu.Lock()
		r.raw[id] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.POM), nil
}

// unresolved maps a repository NOT_FOUND to UNRESOLVED_COORDINATE; other
// errors pass through.
func unresolved(err error, what string) error {
	if errors.Is(err, errors.ErrCodeNotFound) {
		return errors.Wrap(errors.ErrCodeUnresolved, err, "cannot resolve %s", what).WithCoordinate(what)
	}
	return err
}
