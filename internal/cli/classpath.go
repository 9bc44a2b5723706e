package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/classpath"
)

// classpathCommand creates the classpath command.
func (c *CLI) classpathCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "classpath",
		Short: "Print the classpath of the installed artifacts",
		Long: `Print the cached paths of the locked artifacts, joined with the platform
path separator, for use with java -cp.

Scopes:
  compile  compile, provided and system dependencies
  runtime  compile and runtime dependencies (default)
  test     every dependency`,
		Example: `  java -cp "$(gallade classpath)" com.example.Main`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := classpath.ParseTarget(scope)
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

			runner, err := c.newRunner(cmd.Context())
			if err != nil {
				return err
			}
			st, err := runner.OpenStore(opts, nil)
			if err != nil {
				return err
			}

			paths, err := classpath.Build(lf, st, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), classpath.Join(paths))
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", string(classpath.Runtime), "classpath scope: compile, runtime, test")
	return cmd
}
