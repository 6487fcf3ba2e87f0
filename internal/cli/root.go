package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agx/git-buildpackage-sub001/internal/cli/helpers"
	"github.com/agx/git-buildpackage-sub001/internal/cli/queue"
)

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gbp",
		Short: "Maintain Debian packages in git",
		Long: `gbp maintains Debian source packages in git.

Upstream sources and packaging live on separate branches joined at every
imported version. Patches are edited as commits on a patch-queue branch and
exported back to a quilt series.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose command execution")

	rootCmd.AddCommand(
		newImportDscCmd(),
		newImportDscsCmd(),
		queue.NewPQCmd(),
		newVersionCmd(version, commit, date),
	)

	return rootCmd
}

// Execute runs cmd and returns the process exit code. Errors not logged by
// a command are printed here.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, helpers.ErrReported) {
		fmt.Fprintf(cmd.ErrOrStderr(), "gbp:error: %v\n", err)
	}
	return 1
}
