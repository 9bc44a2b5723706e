// Package cli implements the gallade command-line interface.
//
// Commands are thin: they translate flags and configuration into
// [pipeline.Options], call the pipeline or the artifact store, and print
// the outcome. All resolution logic lives in pkg/.
//
// # Commands
//
//   - lock: resolve gallade.toml and write gallade.lock
//   - install: lock, then download and verify every locked artifact
//   - tree: print the locked dependency graph (text, json, dot, svg)
//   - why: explain how a library's version was chosen
//   - search: list the versions a repository publishes
//   - classpath: print the classpath of the installed artifacts
//   - cache: inspect and maintain the artifact cache
//
// # Logging
//
// Logs go to stderr through charmbracelet/log. --verbose (-v) enables
// debug logs, --quiet only reports errors. The logger travels in the
// command context (see loggerFromContext).
//
// [pipeline.Options]: github.com/matzehuels/gallade/pkg/pipeline
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// levelFor maps the --verbose and --quiet flags to a log level. Verbose
// wins when both are set.
func levelFor(verbose, quiet bool) log.Level {
	switch {
	case verbose:
		return log.DebugLevel
	case quiet:
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// progress logs the completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time rounded to the millisecond, e.g.
// "locked 42 packages duration=1.234s".
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "duration", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a copy of ctx carrying l.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
