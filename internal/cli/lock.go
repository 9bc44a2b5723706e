package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gallade/pkg/pipeline"
)

// lockCommand creates the lock command.
func (c *CLI) lockCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve gallade.toml and write gallade.lock",
		Long: `Resolve every dependency of gallade.toml and write the result to gallade.lock.

The lockfile is left untouched when it already matches the manifest, unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(func(o *pipeline.Options) {
				o.Force = force
			})
			if err != nil {
				return err
			}

			runner, err := c.newRunner(cmd.Context())
			if err != nil {
				return err
			}

			spinner := newSpinner(cmd.Context(), cmd.ErrOrStderr(), "Resolving dependencies...")
			spinner.Start()
			res, err := runner.Lock(cmd.Context(), opts)
			spinner.Stop()
			if err != nil {
				return err
			}

			printLockResult(cmd.OutOrStdout(), res, opts.LockfilePath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-resolve even when the lockfile is up to date")
	return cmd
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var (
		force  bool
		frozen bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Lock if needed, then download every locked artifact",
		Long: `Make sure gallade.lock is up to date, then download and verify every locked
artifact into the local cache. Artifacts already cached are not downloaded
again.

With --frozen the lockfile is never written: install fails when it is
missing or does not match the manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(func(o *pipeline.Options) {
				o.Force = force
			})
			if err != nil {
				return err
			}
			opts.Frozen = frozen

			runner, err := c.newRunner(cmd.Context())
			if err != nil {
				return err
			}

			spinner := newSpinner(cmd.Context(), cmd.ErrOrStderr(), "Installing dependencies...")
			spinner.Start()
			res, err := runner.Install(cmd.Context(), opts)
			spinner.Stop()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printLockResult(w, res, opts.LockfilePath)
			printSuccess(w, "Installed %d artifacts", len(res.Installed))
			printDetail(w, "Cache: %s", opts.CacheDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-resolve even when the lockfile is up to date")
	cmd.Flags().BoolVar(&frozen, "frozen", false, "fail instead of updating a missing or stale lockfile")
	return cmd
}

func printLockResult(w io.Writer, res *pipeline.Result, lockPath string) {
	name := res.Manifest.Project.Name
	if name == "" {
		name = "project"
	}
	if res.Fresh {
		printSuccess(w, "Lockfile for %s is up to date", StyleHighlight.Render(name))
	} else {
		printSuccess(w, "Locked %s", StyleHighlight.Render(name))
	}
	printLockStats(w, res.Lockfile, res.Fresh)
	printDiff(w, res.Diff)
	printFile(w, lockPath)
}
