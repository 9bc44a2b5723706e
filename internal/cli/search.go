package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/manifest"
)

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <group:artifact>",
		Short: "List the versions published for a library",
		Long: `List the versions of a library published by the configured repositories,
oldest first. Repositories declared in gallade.toml are searched too when
the manifest exists.`,
		Example: `  gallade search com.google.guava:guava
  gallade search com.google.guava:guava --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := coord.ParseKey(args[0])
			if err != nil {
				return err
			}
			opts, err := c.options()
			if err != nil {
				return err
			}

			var m *manifest.Manifest
			if _, err := os.Stat(opts.ManifestPath); err == nil {
				if m, err = manifest.Load(opts.ManifestPath); err != nil {
					return err
				}
			}

			runner, err := c.newRunner(cmd.Context())
			if err != nil {
				return err
			}
			set, err := runner.Repositories(m, opts)
			if err != nil {
				return err
			}
			versions, err := set.Search(cmd.Context(), k)
			if err != nil {
				return err
			}

			if limit > 0 && len(versions) > limit {
				versions = versions[len(versions)-limit:]
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only print the newest n versions")
	return cmd
}
