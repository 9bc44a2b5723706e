package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gallade/pkg/cache"
	"github.com/matzehuels/gallade/pkg/checksum"
	"github.com/matzehuels/gallade/pkg/conflict"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/graph"
	"github.com/matzehuels/gallade/pkg/lockfile"
	"github.com/matzehuels/gallade/pkg/manifest"
	"github.com/matzehuels/gallade/pkg/metadata"
	"github.com/matzehuels/gallade/pkg/observability"
	"github.com/matzehuels/gallade/pkg/repository"
	"github.com/matzehuels/gallade/pkg/store"
)

// Runner executes pipeline runs against a shared response cache.
//
// The Runner holds no per-run state: every run gets fresh resolver memos,
// so several goroutines may use one Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If logger is nil, runs log nothing, as with a zero Options.Logger.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Lock makes sure the lockfile matches the manifest, resolving and writing
// it when it is missing, stale or opts.Force is set.
func (r *Runner) Lock(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	result, logger := r.start(opts)

	m, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	result.Manifest = m
	hash := m.Hash()

	previous, err := lockfile.Read(opts.LockfilePath)
	if err != nil {
		if !opts.Force {
			return nil, err
		}
		logger.Warn("ignoring unreadable lockfile", "path", opts.LockfilePath, "err", err)
		previous = nil
	}

	if !opts.Force && lockfile.Fresh(previous, hash) {
		logger.Info("lockfile is up to date", "path", opts.LockfilePath)
		result.Lockfile = previous
		result.Fresh = true
		result.Stats.Nodes = len(previous.Entries)
		return result, nil
	}
	if opts.Frozen {
		if previous == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s is missing; run `gallade lock`", opts.LockfilePath)
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s is out of date with %s; run `gallade lock`", opts.LockfilePath, opts.ManifestPath)
	}

	set, err := r.Repositories(m, opts)
	if err != nil {
		return nil, err
	}
	if err := r.resolve(ctx, set, opts, logger, result); err != nil {
		return nil, err
	}

	result.Diff = previous.Diff(result.Lockfile)
	if err := lockfile.Write(opts.LockfilePath, result.Lockfile); err != nil {
		return nil, err
	}
	logger.Info("wrote lockfile",
		"path", opts.LockfilePath,
		"packages", len(result.Lockfile.Entries),
		"changes", len(result.Diff.Added)+len(result.Diff.Removed)+len(result.Diff.Changed))
	return result, nil
}

// Install locks (see [Runner.Lock]) and then downloads every locked
// artifact into the store at opts.CacheDir.
func (r *Runner) Install(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result, err := r.Lock(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger.With("run", result.RunID)

	set, err := r.Repositories(result.Manifest, opts)
	if err != nil {
		return nil, err
	}
	st, err := r.OpenStore(opts, set)
	if err != nil {
		return nil, err
	}

	reqs, err := Requests(result.Lockfile)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	entries, err := st.EnsureAll(ctx, reqs)
	if err != nil {
		return nil, err
	}
	result.Installed = entries
	result.Stats.InstallTime = time.Since(start)
	logger.Info("installed artifacts",
		"artifacts", len(entries),
		"cache", st.Root(),
		"duration", result.Stats.InstallTime)
	return result, nil
}

// Resolve resolves the manifest without reading or writing the lockfile.
// The result carries the full [conflict.Resolution], which explains every
// version decision.
func (r *Runner) Resolve(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	result, logger := r.start(opts)

	m, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	result.Manifest = m
	set, err := r.Repositories(m, opts)
	if err != nil {
		return nil, err
	}
	if err := r.resolve(ctx, set, opts, logger, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Repositories builds the repository set of a run: the manifest's
// repositories first, then opts.Repositories, then Maven Central when
// neither names one. Duplicate URLs are dropped.
func (r *Runner) Repositories(m *manifest.Manifest, opts Options) (*repository.Set, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	type repo struct{ name, url string }
	var repos []repo
	if m != nil {
		for _, mr := range m.Repositories {
			repos = append(repos, repo{mr.Name, mr.URL})
		}
	}
	for _, url := range opts.Repositories {
		repos = append(repos, repo{url: url})
	}
	if len(repos) == 0 {
		repos = append(repos, repo{name: "central", url: repository.MavenCentral})
	}

	seen := make(map[string]bool)
	var clients []*repository.Client
	for _, rp := range repos {
		c, err := repository.New(repository.Options{
			Name:        rp.name,
			URL:         rp.url,
			Cache:       r.Cache,
			Keyer:       r.Keyer,
			VersionsTTL: opts.MetadataTTL,
			Retry:       opts.Retry,
			RateLimit:   opts.RateLimit,
			Logger:      opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		if seen[c.URL()] {
			continue
		}
		seen[c.URL()] = true
		clients = append(clients, c)
	}
	return repository.NewSet(clients...), nil
}

// OpenStore opens the artifact store at opts.CacheDir. fetcher may be nil
// for maintenance commands that never download.
func (r *Runner) OpenStore(opts Options, fetcher store.Fetcher) (*store.Store, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return store.New(opts.CacheDir, fetcher, store.Options{
		Downloads: opts.Downloads,
		Retry:     opts.Retry,
		Logger:    opts.Logger,
	})
}

// Requests converts the installable entries of lf into store requests.
func Requests(lf *lockfile.Lockfile) ([]store.Request, error) {
	var reqs []store.Request
	for _, e := range lf.Entries {
		if !e.Installable() {
			continue
		}
		sum, err := e.Sum()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockfileCorrupt, err, "invalid checksum").WithCoordinate(e.ID())
		}
		reqs = append(reqs, store.Request{Coordinate: e.Coordinate(), Checksum: sum, Source: e.Source})
	}
	return reqs, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) start(opts Options) (*Result, *log.Logger) {
	id := uuid.NewString()
	return &Result{RunID: id}, opts.Logger.With("run", id)
}

// resolve runs metadata, graph and conflict resolution and fills
// result.Resolution and result.Lockfile.
func (r *Runner) resolve(ctx context.Context, set *repository.Set, opts Options, logger *log.Logger, result *Result) (err error) {
	m := result.Manifest
	direct := m.Dependencies()
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, len(direct))
	defer func() {
		observability.Resolve().OnResolveComplete(ctx, result.Stats.Nodes, time.Since(start), err)
	}()

	meta := metadata.New(set, metadata.Options{MaxParentDepth: opts.MaxParentDepth, Logger: logger})
	g, err := graph.NewBuilder(meta, graph.Options{Workers: opts.Workers, Logger: logger}).Build(ctx, direct)
	if err != nil {
		return err
	}
	res, err := conflict.Resolve(ctx, g, m.Pins())
	if err != nil {
		return err
	}
	for _, pin := range res.UnusedPins {
		logger.Warn("pin matches no dependency", "key", pin.String())
	}
	for _, o := range res.Overridden {
		logger.Debug("version overridden", "loser", o.Loser.ID(), "winner", o.Winner.ID(), "reason", o.Reason)
	}

	sums, err := r.checksums(ctx, set, res, opts.Workers, logger)
	if err != nil {
		return err
	}

	result.Resolution = res
	result.Lockfile = lockfile.FromResolution(res, m.Hash(), sums)
	result.Stats.Nodes = len(result.Lockfile.Entries)
	result.Stats.Metadata = meta.Stats()
	result.Stats.ResolveTime = time.Since(start)
	logger.Info("resolved dependencies",
		"direct", len(direct),
		"packages", result.Stats.Nodes,
		"overridden", len(res.Overridden),
		"duration", result.Stats.ResolveTime)
	return nil
}

// checksums fetches the published checksum of every installable node.
// Artifacts without a published checksum are locked without one.
func (r *Runner) checksums(ctx context.Context, set *repository.Set, res *conflict.Resolution, workers int, logger *log.Logger) (map[string]checksum.Sum, error) {
	var (
		mu   sync.Mutex
		sums = make(map[string]checksum.Sum)
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, n := range res.Nodes() {
		c := res.Coordinate(n)
		if c.Type == "pom" {
			continue
		}
		eg.Go(func() error {
			sum, err := set.Checksum(ctx, c, n.Source)
			if errors.Is(err, errors.ErrCodeNotFound) {
				logger.Warn("no published checksum", "coordinate", c.String())
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			sums[c.String()] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
