package git

import (
	"context"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// RebaseResult represents the result of a rebase operation
type RebaseResult int

const (
	// RebaseDone indicates the rebase was successful
	RebaseDone RebaseResult = iota
	// RebaseConflict indicates the rebase stopped on a conflict and is left
	// for the user to resolve
	RebaseConflict
)

// Rebase rebases the checked-out branch onto upstream
func (r *Repository) Rebase(ctx context.Context, upstream string) (RebaseResult, error) {
	_, err := r.runner.Run(ctx, "rebase", upstream)
	if err == nil {
		return RebaseDone, nil
	}
	if r.IsRebaseInProgress(ctx) {
		return RebaseConflict, nil
	}
	return RebaseConflict, gbperrors.NewRepoError("rebase onto "+upstream, err)
}
