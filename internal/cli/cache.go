package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/cache"
	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/store"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the artifact cache",
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheVerifyCommand())
	cmd.AddCommand(c.cacheRemoveCommand())
	cmd.AddCommand(c.cachePruneCommand())
	cmd.AddCommand(c.cacheClearCommand())

	return cmd
}

// openStore opens the artifact store without a fetcher.
func (c *CLI) openStore() (*store.Store, error) {
	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	return store.New(opts.CacheDir, nil, store.Options{Logger: c.Logger})
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.cacheDir())
			return nil
		},
	}
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [group:artifact]",
		Short: "List cached artifacts, or the cached versions of one library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				k, err := coord.ParseKey(args[0])
				if err != nil {
					return err
				}
				versions, err := st.Versions(k)
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintln(w, v)
				}
				return nil
			}

			entries, err := st.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(w, e.Coordinate)
			}
			return nil
		},
	}
}

// cacheVerifyCommand creates the "cache verify" subcommand.
func (c *CLI) cacheVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every cached artifact",
		Long: `Re-hash every cached artifact and report those whose bytes no longer match
their recorded checksum. Corrupt artifacts are downloaded again by the next
install.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			prog := newProgress(loggerFromContext(cmd.Context()))
			entries, err := st.Verify(cmd.Context())
			if err != nil {
				return err
			}
			prog.done("verified cache", "artifacts", len(entries))

			w := cmd.OutOrStdout()
			corrupt := 0
			for _, e := range entries {
				if e.State == store.Verified {
					continue
				}
				corrupt++
				printWarning(w, "%s is %s", e.Coordinate, e.State)
			}
			if corrupt == 0 {
				printSuccess(w, "Verified %d artifacts", len(entries))
				return nil
			}
			printError(w, "%d of %d artifacts failed verification", corrupt, len(entries))
			printNextStep(w, "Repair them with", "gallade install")
			return nil
		},
	}
}

// cacheRemoveCommand creates the "cache remove" subcommand.
func (c *CLI) cacheRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <group:artifact:version>...",
		Aliases: []string{"rm"},
		Short:   "Remove artifacts from the cache",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, arg := range args {
				at, err := coord.Parse(arg)
				if err != nil {
					return err
				}
				ok, err := st.Remove(at)
				if err != nil {
					return err
				}
				if ok {
					printSuccess(w, "Removed %s", at)
				} else {
					printInfo(w, "%s is not cached", at)
				}
			}
			return nil
		},
	}
}

// cachePruneCommand creates the "cache prune" subcommand.
func (c *CLI) cachePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove cached artifacts the lockfile does not reference",
		Long: `Remove every cached artifact that gallade.lock does not reference, along
with expired HTTP responses and abandoned downloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options()
			if err != nil {
				return err
			}
			lf, err := readLockfile(opts.LockfilePath)
			if err != nil {
				return err
			}
			st, err := c.openStore()
			if err != nil {
				return err
			}

			keep := make([]coord.Coordinate, 0, len(lf.Entries))
			for _, e := range lf.Entries {
				keep = append(keep, e.Coordinate())
			}
			prog := newProgress(loggerFromContext(cmd.Context()))
			removed, err := st.Prune(keep)
			if err != nil {
				return err
			}
			prog.done("pruned cache", "kept", len(keep), "removed", len(removed))

			w := cmd.OutOrStdout()
			for _, rc := range removed {
				printDetail(w, "removed %s", rc)
			}
			printSuccess(w, "Pruned %d artifacts", len(removed))

			responses, err := cache.NewFileCache(c.responsesDir())
			if err != nil {
				return err
			}
			swept, err := responses.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if swept > 0 {
				printSuccess(w, "Removed %d expired responses", swept)
			}
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached artifact and HTTP response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openStore()
			if err != nil {
				return err
			}
			entries, err := st.Entries()
			if err != nil {
				return err
			}
			if err := st.Clear(); err != nil {
				return err
			}
			responses, err := cache.NewFileCache(c.responsesDir())
			if err != nil {
				return err
			}
			if err := responses.Clear(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printSuccess(w, "Cleared %d cached artifacts", len(entries))
			printDetail(w, "Directory: %s", c.cacheDir())
			return nil
		},
	}
}
