// Package helpers provides shared helper functions for CLI commands.
package helpers

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agx/git-buildpackage-sub001/internal/git"
)

// CompleteBranches is a helper for RegisterFlagCompletionFunc that returns
// all branch names of the repository in the working directory
func CompleteBranches(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	repo, err := git.Open(ctx, wd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	branches, err := repo.Branches(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return branches, cobra.ShellCompDirectiveNoFileComp
}

// CompleteSourcePackages completes .dsc files
func CompleteSourcePackages(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"dsc"}, cobra.ShellCompDirectiveFilterFileExt
}
