package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
)

// whyCommand creates the why command.
func (c *CLI) whyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "why <group:artifact>",
		Short: "Explain how a library's version was chosen",
		Long: `Resolve the manifest and explain the version chosen for a library: the
rule that decided it, the path that requested it and every version that
was rejected.`,
		Example: `  gallade why org.slf4j:slf4j-api`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := coord.ParseKey(args[0])
			if err != nil {
				return err
			}
			opts, err := c.options()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context())
			if err != nil {
				return err
			}

			spinner := newSpinner(cmd.Context(), cmd.ErrOrStderr(), "Resolving dependencies...")
			spinner.Start()
			res, err := runner.Resolve(cmd.Context(), opts)
			spinner.Stop()
			if err != nil {
				return err
			}

			e, ok := res.Resolution.Why(k)
			if !ok {
				return errors.New(errors.ErrCodeNotFound, "%s is not a dependency of this project", k)
			}
			fmt.Fprint(cmd.OutOrStdout(), e.String())
			return nil
		},
	}
}
