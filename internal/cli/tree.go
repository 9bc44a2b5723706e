package cli

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/lockfile"
	"github.com/matzehuels/gallade/pkg/render"
)

// treeCommand creates the tree command.
func (c *CLI) treeCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the locked dependency graph",
		Long: `Print the dependency graph recorded in gallade.lock.

Formats:
  text  indented tree (default)
  json  nodes and edges
  dot   Graphviz source
  svg   rendered with Graphviz

The lockfile is read as is; run "gallade lock" first to refresh it.`,
		Example: `  gallade tree
  gallade tree --format svg -o deps.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			opts, err := c.options()
			if err != nil {
				return err
			}
			lf, err := readLockfile(opts.LockfilePath)
			if err != nil {
				return err
			}

			if output == "" {
				return render.Render(cmd.Context(), cmd.OutOrStdout(), lf, f)
			}
			var buf bytes.Buffer
			if err := render.Render(cmd.Context(), &buf, lf, f); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Wrote %s graph", f)
			printFile(cmd.ErrOrStderr(), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", string(render.FormatText), "output format: text, json, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

// readLockfile reads the lockfile at path and fails when there is none.
func readLockfile(path string) (*lockfile.Lockfile, error) {
	lf, err := lockfile.Read(path)
	if err != nil {
		return nil, err
	}
	if lf == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no lockfile at %s; run `gallade lock` first", path)
	}
	return lf, nil
}
