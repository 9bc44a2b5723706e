// Package pipeline runs gallade's end-to-end workflows.
//
// The CLI only parses flags and prints results; everything between reading
// gallade.toml and populating the artifact cache happens here:
//
//  1. Load: parse the manifest and the existing lockfile
//  2. Fast path: a lockfile whose manifest hash matches is reused as is
//  3. Resolve: versions and descriptors ([metadata]), graph ([graph]),
//     conflicts ([conflict]) and published checksums
//  4. Lock: write gallade.lock atomically ([lockfile])
//  5. Install: download and verify every locked artifact ([store])
//
// A lockfile is only written after resolution succeeded, and installation
// only starts after the lockfile is on disk.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	defer runner.Close()
//	result, err := runner.Install(ctx, pipeline.Options{ManifestPath: "gallade.toml"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Diff)
//
// [metadata]: github.com/matzehuels/gallade/pkg/metadata
// [graph]: github.com/matzehuels/gallade/pkg/graph
// [conflict]: github.com/matzehuels/gallade/pkg/conflict
// [lockfile]: github.com/matzehuels/gallade/pkg/lockfile
// [store]: github.com/matzehuels/gallade/pkg/store
package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gallade/pkg/conflict"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/graph"
	"github.com/matzehuels/gallade/pkg/httputil"
	"github.com/matzehuels/gallade/pkg/lockfile"
	"github.com/matzehuels/gallade/pkg/manifest"
	"github.com/matzehuels/gallade/pkg/metadata"
	"github.com/matzehuels/gallade/pkg/store"
)

// DefaultMetadataTTL bounds how long version listings stay in the response
// cache. Released descriptors never expire.
const DefaultMetadataTTL = time.Hour

// Options configures a pipeline run.
type Options struct {
	ManifestPath string // default: gallade.toml
	LockfilePath string // default: gallade.lock next to the manifest
	CacheDir     string // artifact store root (default: DefaultCacheDir)

	// Repositories are tried after those declared by the manifest. When
	// neither names one, Maven Central is used.
	Repositories []string

	Workers        int             // concurrent metadata fetches
	Downloads      int             // concurrent artifact downloads
	MaxParentDepth int             // parent and BOM chain bound
	Retry          httputil.Policy // transient network failures
	RateLimit      float64         // requests per second per repository; zero is unlimited
	MetadataTTL    time.Duration

	// Force re-resolves even when the lockfile is fresh.
	Force bool
	// Frozen fails instead of re-resolving when the lockfile is missing
	// or stale.
	Frozen bool

	Logger *log.Logger

	validated bool
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Manifest *manifest.Manifest
	Lockfile *lockfile.Lockfile

	// Resolution is nil when the fresh lockfile was reused.
	Resolution *conflict.Resolution

	// Fresh reports that the existing lockfile was reused.
	Fresh bool

	// Diff describes what changed compared to the previous lockfile.
	Diff lockfile.Diff

	// Installed holds the cache entries of an install, in lockfile order.
	Installed []*store.Entry

	Stats Stats
}

// Stats contains run statistics.
type Stats struct {
	Nodes       int
	Metadata    metadata.Stats
	ResolveTime time.Duration
	InstallTime time.Duration
}

// DefaultCacheDir returns the user cache directory for gallade artifacts.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "gallade")
}

// ValidateAndSetDefaults checks option combinations and applies defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Force && o.Frozen {
		return errors.New(errors.ErrCodeInvalidInput, "--force and --frozen are mutually exclusive")
	}
	for _, url := range o.Repositories {
		if err := errors.ValidateURL(url); err != nil {
			return err
		}
	}
	if o.Workers < 0 || o.Downloads < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers and downloads must not be negative")
	}

	if o.ManifestPath == "" {
		o.ManifestPath = manifest.FileName
	}
	if o.LockfilePath == "" {
		o.LockfilePath = filepath.Join(filepath.Dir(o.ManifestPath), lockfile.FileName)
	}
	if o.CacheDir == "" {
		o.CacheDir = DefaultCacheDir()
	}
	if o.Workers == 0 {
		o.Workers = graph.DefaultWorkers
	}
	if o.Downloads == 0 {
		o.Downloads = store.DefaultDownloads
	}
	if o.MaxParentDepth == 0 {
		o.MaxParentDepth = metadata.DefaultMaxParentDepth
	}
	if o.Retry.Attempts == 0 {
		o.Retry = httputil.DefaultPolicy
	}
	if o.MetadataTTL == 0 {
		o.MetadataTTL = DefaultMetadataTTL
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}
