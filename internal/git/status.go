package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// IsClean reports whether the working copy (or just paths, when given) has
// no staged, unstaged or untracked changes. A bare repository is always clean.
func (r *Repository) IsClean(ctx context.Context, paths ...string) (bool, error) {
	if r.bare {
		return true, nil
	}
	args := []string{"status", "--porcelain", "--untracked-files=all"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	out, err := r.runner.Run(ctx, args...)
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// IsAncestor reports whether ancestor is reachable from rev
func (r *Repository) IsAncestor(ctx context.Context, ancestor, rev string) (bool, error) {
	_, err := r.runner.Run(ctx, "merge-base", "--is-ancestor", ancestor, rev)
	if err == nil {
		return true, nil
	}
	var cmdErr *gbperrors.GitCommandError
	if errors.As(err, &cmdErr) {
		var exitErr interface{ ExitCode() int }
		if errors.As(cmdErr.Err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, nil
		}
	}
	return false, err
}

// IsInMerge reports whether a merge is in progress
func (r *Repository) IsInMerge(_ context.Context) bool {
	_, err := os.Stat(filepath.Join(r.gitDir, "MERGE_HEAD"))
	return err == nil
}

// AbortMerge aborts the merge in progress
func (r *Repository) AbortMerge(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, "merge", "--abort"); err != nil {
		return gbperrors.NewRepoError("abort merge", err)
	}
	return nil
}

// IsRebaseInProgress reports whether a rebase stopped halfway
func (r *Repository) IsRebaseInProgress(_ context.Context) bool {
	for _, dir := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(r.gitDir, dir)); err == nil {
			return true
		}
	}
	return false
}
