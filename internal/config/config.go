// Package config loads gallade's user configuration.
//
// Settings are layered, later sources winning:
//
//  1. built-in defaults
//  2. $XDG_CONFIG_HOME/gallade/config.toml (or --config)
//  3. GALLADE_* environment variables (GALLADE_CACHE_DIR, GALLADE_WORKERS, ...)
//  4. command-line flags bound with [LoadOptions.Flags]
//
// Example config.toml:
//
//	cache_dir = "/var/cache/gallade"
//	repositories = ["https://repo.example.com/maven2"]
//	workers = 16
//	retry_delay = "500ms"
//	redis_url = "redis://localhost:6379/0"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/gallade/pkg/errors"
)

const (
	// AppName is the application name used for directories.
	AppName = "gallade"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "GALLADE"
)

// Config holds user settings.
type Config struct {
	CacheDir      string        `mapstructure:"cache_dir"`
	Repositories  []string      `mapstructure:"repositories"`
	Workers       int           `mapstructure:"workers"`
	Downloads     int           `mapstructure:"downloads"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	MetadataTTL   time.Duration `mapstructure:"metadata_ttl"`
	RedisURL      string        `mapstructure:"redis_url"`
	NoCache       bool          `mapstructure:"no_cache"`
	MetricsFile   string        `mapstructure:"metrics_file"`
}

// Keys lists every configuration key.
var Keys = []string{
	"cache_dir", "repositories", "workers", "downloads", "retry_attempts", "retry_delay",
	"rate_limit", "metadata_ttl", "redis_url", "no_cache", "metrics_file",
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:       8,
		Downloads:     4,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		MetadataTTL:   time.Hour,
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile, when set, is the only file read and must exist.
	ConfigFile string
	// ConfigDir overrides the directory searched for config.toml.
	ConfigDir string
	// Flags are bound by key name with dashes, e.g. --cache-dir for
	// cache_dir. Unknown or unset flags are ignored.
	Flags *pflag.FlagSet
}

// Dir returns the gallade configuration directory, $XDG_CONFIG_HOME/gallade
// or ~/.config/gallade.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Load reads the configuration and returns it together with the path of
// the file used, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("repositories", defaults.Repositories)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("downloads", defaults.Downloads)
	v.SetDefault("retry_attempts", defaults.RetryAttempts)
	v.SetDefault("retry_delay", defaults.RetryDelay)
	v.SetDefault("rate_limit", defaults.RateLimit)
	v.SetDefault("metadata_ttl", defaults.MetadataTTL)
	v.SetDefault("redis_url", defaults.RedisURL)
	v.SetDefault("no_cache", defaults.NoCache)
	v.SetDefault("metrics_file", defaults.MetricsFile)

	path, err := configFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range Keys {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, "", fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

func configFile(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "config file not found: %s", opts.ConfigFile)
		}
		return opts.ConfigFile, nil
	}
	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", nil
		}
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// Validate checks value ranges and repository URLs.
func (c *Config) Validate() error {
	if c.Workers < 0 || c.Downloads < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers and downloads must not be negative")
	}
	if c.RetryAttempts < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retry_attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 || c.MetadataTTL < 0 || c.RateLimit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retry_delay, metadata_ttl and rate_limit must not be negative")
	}
	for _, url := range c.Repositories {
		if err := errors.ValidateURL(url); err != nil {
			return err
		}
	}
	return nil
}
