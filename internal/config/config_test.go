package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/matzehuels/gallade/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	cfg, path, err := Load(LoadOptions{ConfigDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("path = %q, want none", path)
	}
	want := Default()
	if cfg.Workers != want.Workers || cfg.RetryAttempts != 3 || cfg.RetryDelay != time.Second || cfg.NoCache {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	dir := writeConfig(t, `
cache_dir = "/tmp/artifacts"
repositories = ["https://repo.example.com/maven2", "https://mirror.example.com/m2"]
workers = 16
retry_delay = "250ms"
metadata_ttl = "2h"
rate_limit = 5.5
`)
	cfg, path, err := Load(LoadOptions{ConfigDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "config.toml") {
		t.Errorf("path = %q", path)
	}
	if cfg.CacheDir != "/tmp/artifacts" || cfg.Workers != 16 || cfg.RateLimit != 5.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RetryDelay != 250*time.Millisecond || cfg.MetadataTTL != 2*time.Hour {
		t.Errorf("durations = %v, %v", cfg.RetryDelay, cfg.MetadataTTL)
	}
	if len(cfg.Repositories) != 2 {
		t.Errorf("repositories = %v", cfg.Repositories)
	}
	if cfg.Downloads != 4 {
		t.Errorf("unset key should keep its default, got downloads = %d", cfg.Downloads)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := writeConfig(t, "workers = 16\ndownloads = 2\ncache_dir = \"/from/file\"\n")
	t.Setenv("GALLADE_WORKERS", "32")
	t.Setenv("GALLADE_CACHE_DIR", "/from/env")
	t.Setenv("GALLADE_REPOSITORIES", "https://a.example.com,https://b.example.com")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cache-dir", "", "")
	flags.Int("workers", 0, "")
	if err := flags.Parse([]string{"--cache-dir", "/from/flag"}); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(LoadOptions{ConfigDir: dir, Flags: flags})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir != "/from/flag" {
		t.Errorf("cache_dir = %q, want the flag value", cfg.CacheDir)
	}
	if cfg.Workers != 32 {
		t.Errorf("workers = %d, want the env value (flag unset)", cfg.Workers)
	}
	if cfg.Downloads != 2 {
		t.Errorf("downloads = %d, want the file value", cfg.Downloads)
	}
	if !slices.Equal(cfg.Repositories, []string{"https://a.example.com", "https://b.example.com"}) {
		t.Errorf("repositories = %v", cfg.Repositories)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) LoadOptions
	}{
		{"missing explicit file", func(t *testing.T) LoadOptions {
			return LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.toml")}
		}},
		{"syntax error", func(t *testing.T) LoadOptions {
			return LoadOptions{ConfigDir: writeConfig(t, "workers = [")}
		}},
		{"zero retry attempts", func(t *testing.T) LoadOptions {
			return LoadOptions{ConfigDir: writeConfig(t, "retry_attempts = 0")}
		}},
		{"bad repository", func(t *testing.T) LoadOptions {
			return LoadOptions{ConfigDir: writeConfig(t, `repositories = ["ftp://example.com"]`)}
		}},
		{"bad duration", func(t *testing.T) LoadOptions {
			return LoadOptions{ConfigDir: writeConfig(t, `retry_delay = "soon"`)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(tt.opts(t))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/xdg", "gallade") {
		t.Errorf("Dir() = %q", dir)
	}
}
