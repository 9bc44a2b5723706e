package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/gallade/internal/cli"
	"github.com/matzehuels/gallade/pkg/errors"
)

var styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("167"))

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if stderrors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, styleError.Render("✗ "+errors.UserMessage(err)))
		os.Exit(errors.ExitCode(err))
	}
}

func run(ctx context.Context) (err error) {
	c := cli.New(os.Stderr, cli.LogInfo)
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return c.RootCommand().ExecuteContext(ctx)
}
