// Package queue provides the pq command that manages patch-queue branches.
package queue

import (
	"github.com/spf13/cobra"

	"github.com/agx/git-buildpackage-sub001/internal/cli/helpers"
	"github.com/agx/git-buildpackage-sub001/internal/config"
	"github.com/agx/git-buildpackage-sub001/internal/pq"
	"github.com/agx/git-buildpackage-sub001/internal/runtime"
)

// NewPQCmd creates the pq command and its actions
func NewPQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pq",
		Short: "Manage the quilt patches of a package as a git branch",
		Long: `Manage the quilt patches of a package as a git branch.

Every patch of debian/patches/series becomes one commit on patch-queue/<branch>.
Edit the queue with regular git commands, then export it back to
debian/patches.`,
	}
	helpers.AddCommonFlags(cmd, cmd.PersistentFlags())
	persistent := cmd.PersistentFlags()
	persistent.String("pq-from", config.PQFromDebian, "Base the queue on the Debian branch (DEBIAN) or the upstream tag (TAG)")
	persistent.Bool("force", false, "Replace an existing patch queue when importing")
	persistent.Int("time-machine", 1, "Number of commits of the Debian branch to try the series on")

	cmd.AddCommand(
		newImportCmd(),
		newExportCmd(),
		newRebaseCmd(),
		newDropCmd(),
		newSwitchCmd(),
		newApplyCmd(),
	)
	return cmd
}

// withQueue runs fn with a queue for the repository in the working directory
func withQueue(cmd *cobra.Command, fn func(ctx *runtime.Context, q *pq.Queue) error) error {
	return helpers.Run(cmd, func(ctx *runtime.Context) error {
		repo, err := ctx.RequireRepo()
		if err != nil {
			return err
		}
		opts, err := config.NewPQ(ctx.Values)
		if err != nil {
			return err
		}
		return fn(ctx, pq.New(repo, ctx.Splog, opts))
	})
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Create the patch queue from debian/patches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				return q.Import(ctx)
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the patch queue to debian/patches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				result, err := q.Export(ctx)
				if err != nil {
					return err
				}
				for _, name := range result.Patches {
					ctx.Splog.Debug("Exported %s", name)
				}
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.Bool("commit", false, "Commit the changes to debian/patches")
	flags.Bool("drop", false, "Drop the patch queue after exporting")
	flags.Bool("patch-numbers", false, "Prefix patch file names with a number")
	flags.String("patch-num-format", config.DefaultPatchNumFormat, "Format of the patch number prefix")
	flags.Bool("renumber", false, "Renumber patches named with 'Gbp: Name'")
	flags.Int("abbrev", 7, "Length of abbreviated object names in patches")
	return cmd
}

func newRebaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebase",
		Short: "Rebase the patch queue onto its base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				_, err := q.Rebase(ctx)
				return err
			})
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the patch queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				return q.Drop(ctx)
			})
		},
	}
}

func newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch",
		Short: "Switch between the Debian branch and its patch queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				return q.Switch(ctx)
			})
		},
	}
}

func newApplyCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "apply <patch>",
		Short: "Apply a single patch file to the patch queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd, func(ctx *runtime.Context, q *pq.Queue) error {
				return q.Apply(ctx, args[0], topic)
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic directory of the patch")
	return cmd
}
