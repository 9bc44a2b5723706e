package cli

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/internal/config"
	"github.com/matzehuels/gallade/pkg/buildinfo"
	"github.com/matzehuels/gallade/pkg/cache"
	"github.com/matzehuels/gallade/pkg/httputil"
	"github.com/matzehuels/gallade/pkg/observability/metrics"
	"github.com/matzehuels/gallade/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "gallade"

	// artifactsDir and responsesDir split the cache directory between the
	// artifact store and the HTTP response cache.
	artifactsDir = "artifacts"
	responsesDir = "http"

	// redisPrefix namespaces gallade keys in a shared Redis.
	redisPrefix = "gallade:"

	// responseScope versions cached responses; bump it when their
	// encoding changes.
	responseScope = "v1:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	// Persistent flags that are not configuration keys.
	configFile string
	manifest   string
	verbose    bool
	quiet      bool

	runner  *pipeline.Runner
	metrics *metrics.Metrics
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	cfg := config.Default()
	return &CLI{
		Logger: newLogger(w, level),
		Config: &cfg,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Gallade resolves and installs Maven dependencies",
		Long: `Gallade reads the dependencies declared in gallade.toml, resolves them
against Maven repositories, records the result in gallade.lock and installs
the locked artifacts into a content-addressed local cache.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	defaults := config.Default()
	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/gallade/config.toml)")
	flags.StringVarP(&c.manifest, "manifest", "f", "", "manifest path (default ./gallade.toml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&c.quiet, "quiet", "q", false, "only log errors")

	// Configuration keys; bound to viper in setup.
	flags.String("cache-dir", "", "cache directory (default: user cache dir)")
	flags.StringSlice("repositories", nil, "extra repository URLs, tried after the manifest's")
	flags.Int("workers", defaults.Workers, "concurrent metadata fetches")
	flags.Int("downloads", defaults.Downloads, "concurrent artifact downloads")
	flags.Int("retry-attempts", defaults.RetryAttempts, "attempts per request on transient failures")
	flags.Float64("rate-limit", defaults.RateLimit, "requests per second per repository (0 = unlimited)")
	flags.Bool("no-cache", false, "disable the HTTP response cache")
	flags.String("redis-url", "", "share the response cache through Redis")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(c.lockCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.whyCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.classpathCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration once flags are parsed.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	c.SetLogLevel(levelFor(c.verbose, c.quiet))

	cfg, path, err := config.Load(config.LoadOptions{
		ConfigFile: c.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	c.Config = cfg
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}

	if cfg.MetricsFile != "" && c.metrics == nil {
		c.metrics = metrics.New(nil)
		c.metrics.Install()
	}

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// Close writes metrics, if enabled, and releases the response cache.
func (c *CLI) Close() error {
	var errs []error
	if c.metrics != nil && c.Config.MetricsFile != "" {
		if err := c.metrics.WriteTextfile(c.Config.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	if c.runner != nil {
		errs = append(errs, c.runner.Close())
		c.runner = nil
	}
	return stderrors.Join(errs...)
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner returns the pipeline runner, creating it on first use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	if c.runner != nil {
		return c.runner, nil
	}
	rc, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), responseScope)
	c.runner = pipeline.NewRunner(rc, keyer, c.Logger)
	return c.runner, nil
}

// newCache picks the response cache backend: none, Redis or files.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	switch {
	case c.Config.NoCache:
		return cache.NewNullCache(), nil
	case c.Config.RedisURL != "":
		return cache.NewRedisCache(ctx, c.Config.RedisURL, redisPrefix)
	}
	return cache.NewFileCache(c.responsesDir())
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the user cache
// directory (~/.cache/gallade on Linux).
func (c *CLI) cacheDir() string {
	if c.Config.CacheDir != "" {
		return c.Config.CacheDir
	}
	return pipeline.DefaultCacheDir()
}

func (c *CLI) artifactsDir() string { return filepath.Join(c.cacheDir(), artifactsDir) }
func (c *CLI) responsesDir() string { return filepath.Join(c.cacheDir(), responsesDir) }

// =============================================================================
// Options Helpers
// =============================================================================

// options maps the configuration onto pipeline options, applies set and
// then the defaults, so paths such as LockfilePath are final.
func (c *CLI) options(set ...func(*pipeline.Options)) (pipeline.Options, error) {
	cfg := c.Config
	opts := pipeline.Options{
		ManifestPath: c.manifest,
		CacheDir:     c.artifactsDir(),
		Repositories: cfg.Repositories,
		Workers:      cfg.Workers,
		Downloads:    cfg.Downloads,
		Retry: httputil.Policy{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay,
			OnRetry: func(attempt int, err error) {
				c.Logger.Debug("retrying", "attempt", attempt, "error", err)
			},
		},
		RateLimit:   cfg.RateLimit,
		MetadataTTL: cfg.MetadataTTL,
		Logger:      c.Logger,
	}
	for _, fn := range set {
		fn(&opts)
	}
	err := opts.ValidateAndSetDefaults()
	return opts, err
}
