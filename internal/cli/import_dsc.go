package cli

import (
	"github.com/spf13/cobra"

	"github.com/agx/git-buildpackage-sub001/internal/cli/helpers"
	"github.com/agx/git-buildpackage-sub001/internal/config"
	"github.com/agx/git-buildpackage-sub001/internal/importer"
	"github.com/agx/git-buildpackage-sub001/internal/runtime"
)

func addImportFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	helpers.AddCommonFlags(cmd, flags)
	flags.Bool("pristine-tar", false, "Use pristine-tar to import the upstream tarball")
	flags.String("pristine-tar-branch", config.DefaultPristineTarBranch, "Branch pristine-tar stores its deltas on")
	flags.Bool("create-missing-branches", false, "Create missing upstream and Debian branches")
	flags.Bool("allow-same-version", false, "Import a version that is already tagged, moving the old tag aside")
	flags.Bool("author-is-committer", false, "Use the changelog author as committer too")
	flags.Bool("author-date-is-committer-date", false, "Use the changelog date as commit date too")
	flags.Bool("skip-debian-tag", false, "Don't tag the imported packaging")
	flags.Bool("bare", false, "Create a bare repository when none exists")
	flags.String("repo", "", "Repository to import into")
}

// newImportDscCmd creates the import-dsc command
func newImportDscCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-dsc <dsc> [target]",
		Short: "Import a Debian source package into a git repository",
		Long: `Import a Debian source package into a git repository.

The upstream tarball is committed to the upstream branch and tagged, the
unpacked package is committed to the Debian branch as a merge of the
upstream commit and tagged. Without a repository in the current directory,
one named after the package (or target) is created.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: helpers.CompleteSourcePackages,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				if len(args) > 1 {
					ctx.Values["repo"] = args[1]
				}
				opts, err := config.NewImportDsc(ctx.Values)
				if err != nil {
					return err
				}
				_, err = importer.New(ctx.Splog, opts).Import(ctx, args[0])
				return err
			})
		},
	}
	addImportFlags(cmd)
	return cmd
}

// newImportDscsCmd creates the import-dscs command
func newImportDscsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-dscs <dsc>...",
		Short: "Import several Debian source packages in version order",
		Long: `Import several Debian source packages into one repository.

Packages are imported oldest version first. Already imported versions are
skipped and the run stops at the first failure.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: helpers.CompleteSourcePackages,
		RunE: func(cmd *cobra.Command, args []string) error {
			return helpers.Run(cmd, func(ctx *runtime.Context) error {
				opts, err := config.NewImportDsc(ctx.Values)
				if err != nil {
					return err
				}
				outcomes, err := importer.New(ctx.Splog, opts).ImportAll(ctx, args)
				for _, out := range outcomes {
					ctx.Splog.Debug("%s", out)
				}
				return err
			})
		},
	}
	addImportFlags(cmd)
	return cmd
}
