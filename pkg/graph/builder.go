package graph

import (
	"context"
	stderrors "errors"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/metadata"
	"github.com/matzehuels/gallade/pkg/version"
)

// DefaultWorkers bounds concurrent metadata work within one level.
const DefaultWorkers = 8

// Resolver answers version and descriptor queries. *metadata.Resolver
// implements it.
type Resolver interface {
	ResolveVersion(ctx context.Context, k coord.Key, s version.Spec) (string, error)
	Descriptor(ctx context.Context, at coord.Coordinate) (*metadata.Descriptor, error)
}

// Options configures a [Builder].
type Options struct {
	Workers int         // concurrent fetches per level (default: 8)
	Logger  *log.Logger // optional
}

// Builder expands direct dependencies into a candidate [Graph].
type Builder struct {
	res     Resolver
	workers int
	logger  *log.Logger
}

// NewBuilder creates a builder over res.
func NewBuilder(res Resolver, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Builder{res: res, workers: opts.Workers, logger: opts.Logger}
}

type pending struct {
	dep        coord.Dependency
	parent     *Node
	depth      int
	path       []*Node // ancestors, direct dependency first
	exclusions []coord.Exclusion
}

type fetched struct {
	at   coord.Coordinate
	desc *metadata.Descriptor // nil when the coordinate was already in the graph
	err  error
}

// Build walks the dependency graph of direct, which must be in declaration
// order.
func (b *Builder) Build(ctx context.Context, direct []coord.Dependency) (*Graph, error) {
	g := New()
	level := make([]pending, 0, len(direct))
	for _, d := range direct {
		level = append(level, pending{dep: d})
	}

	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := b.fetch(ctx, g, level)
		if err != nil {
			return nil, err
		}

		var next []pending
		for i, p := range level {
			if next, err = b.apply(g, p, results[i], next); err != nil {
				return nil, err
			}
		}
		b.logger.Debug("expanded level", "depth", depth, "requests", len(level), "nodes", g.Len())
		level = next
	}

	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}

// fetch resolves every request of a level concurrently. The graph is only
// read here; all writes happen in apply.
func (b *Builder) fetch(ctx context.Context, g *Graph, level []pending) ([]fetched, error) {
	results := make([]fetched, len(level))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)

	for i, p := range level {
		eg.Go(func() error {
			results[i] = b.resolve(ctx, g, p)
			return results[i].err
		})
	}
	if err := eg.Wait(); err != nil {
		// Report the first failure in discovery order, not the first to
		// finish, so the error is as deterministic as the graph.
		for _, r := range results {
			if r.err != nil && !stderrors.Is(r.err, context.Canceled) {
				return nil, r.err
			}
		}
		return nil, err
	}
	return results, nil
}

func (b *Builder) resolve(ctx context.Context, g *Graph, p pending) fetched {
	spec, err := version.ParseSpec(p.dep.Spec)
	if err != nil {
		return fetched{err: failure(p, err)}
	}
	v, err := b.res.ResolveVersion(ctx, p.dep.Key(), spec)
	if err != nil {
		return fetched{err: failure(p, err)}
	}

	f := fetched{at: p.dep.At(v)}
	if _, ok := g.nodes[f.at.String()]; ok {
		return f
	}
	if f.desc, err = b.res.Descriptor(ctx, f.at); err != nil {
		return fetched{err: failure(p, err)}
	}
	return f
}

func (b *Builder) apply(g *Graph, p pending, f fetched, next []pending) ([]pending, error) {
	scope := p.dep.Scope
	if p.parent != nil {
		scope = p.parent.Coordinate.Scope.Inherit(p.dep.Scope)
	}

	if n, ok := g.nodes[f.at.String()]; ok {
		if p.parent != nil {
			g.Connect(p.parent, n, p.dep.Scope)
		}
		if scope.Rank() < n.Coordinate.Scope.Rank() {
			n.Coordinate.Scope = scope
		}
		return next, nil
	}

	at := f.at
	at.Scope = scope
	if f.desc.Packaging == "pom" && at.Type == "" {
		at.Type = "pom"
	}
	n := &Node{
		Coordinate: at,
		Dependency: p.dep,
		Depth:      p.depth,
		Packaging:  f.desc.Packaging,
		Source:     f.desc.Source,
		Path:       append(ids(p.path), at.String()),
		exclusions: append(slices.Clone(p.exclusions), p.dep.Exclusions...),
	}
	g.Add(n)
	if p.parent != nil {
		g.Connect(p.parent, n, p.dep.Scope)
	}

	path := append(slices.Clone(p.path), n)
	for _, d := range f.desc.Dependencies {
		if !d.Scope.Transitive() || d.Optional {
			continue
		}
		if coord.Excluded(n.exclusions, d.Key()) {
			b.logger.Debug("excluded", "dependency", d.Key(), "by", n.ID())
			continue
		}
		// Cycles are detected per library: a path back to any version of
		// an ancestor is a cycle.
		if i := slices.IndexFunc(path, func(a *Node) bool { return a.Key() == d.Key() }); i >= 0 {
			return nil, CycleError(append(slices.Clone(path[i:]), path[i]))
		}
		next = append(next, pending{
			dep:        d,
			parent:     n,
			depth:      p.depth + 1,
			path:       path,
			exclusions: n.exclusions,
		})
	}
	return next, nil
}

// failure attaches the requesting chain to err and keeps its code, so the
// exit status still reflects the root cause.
func failure(p pending, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := errors.GetCode(err)
	if code == "" || code == errors.ErrCodeInvalidInput || code == errors.ErrCodeNotFound {
		code = errors.ErrCodeUnresolved
	}
	key := p.dep.Key().String()
	return errors.Wrap(code, err, "cannot resolve %s", p.dep).
		WithCoordinate(key).
		WithChain(append(ids(p.path), key))
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}
