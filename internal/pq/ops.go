package pq

import (
	"context"
	"path/filepath"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/patch"
)

// Rebase replays the queue onto its freshly computed base point, importing
// the queue first when there is none. A conflict leaves the rebase for the
// user to finish.
func (q *Queue) Rebase(ctx context.Context) (git.RebaseResult, error) {
	current, branch, err := q.currentBranch(ctx)
	if err != nil {
		return git.RebaseConflict, err
	}
	if current == branch {
		if err := q.enterQueue(ctx, branch); err != nil {
			return git.RebaseConflict, err
		}
	}

	base, err := q.basePoint(ctx, branch)
	if err != nil {
		return git.RebaseConflict, err
	}
	result, err := q.repo.Rebase(ctx, base)
	if err != nil {
		return result, gbperrors.WrapGbpError(err, "Rebase of '%s' onto '%s' failed", BranchName(branch), base)
	}
	if result == git.RebaseConflict {
		q.log.Warn("Rebase of '%s' stopped on a conflict, resolve it and run 'git rebase --continue'", BranchName(branch))
	}
	return result, nil
}

// Switch toggles between the base branch and its queue, importing the
// queue when it does not exist
func (q *Queue) Switch(ctx context.Context) error {
	current, branch, err := q.currentBranch(ctx)
	if err != nil {
		return err
	}
	if current != branch {
		q.log.Info("Switching to '%s'", branch)
		return q.repo.Checkout(ctx, branch)
	}
	return q.enterQueue(ctx, branch)
}

// enterQueue checks out the queue of branch, importing it if needed
func (q *Queue) enterQueue(ctx context.Context, branch string) error {
	imported, err := q.maybeImport(ctx, branch)
	if err != nil || imported {
		return err
	}
	return q.switchToQueue(ctx, branch)
}

// Drop deletes the queue of the checked-out branch. It refuses to run on a
// queue branch.
func (q *Queue) Drop(ctx context.Context) error {
	current, _, err := q.currentBranch(ctx)
	if err != nil {
		return err
	}
	if IsPQBranch(current) {
		return gbperrors.NewGbpErrorKind(gbperrors.ErrOnPatchQueue, "On a patch-queue branch, can't drop the queue you're on")
	}
	return q.dropQueue(ctx, current)
}

func (q *Queue) dropQueue(ctx context.Context, branch string) error {
	pqBranch := BranchName(branch)
	if !q.repo.HasBranch(ctx, pqBranch) {
		q.log.Info("No patch queue branch found - doing nothing.")
		return nil
	}
	if err := q.repo.DeleteBranch(ctx, pqBranch); err != nil {
		return err
	}
	q.log.Info("Dropped branch '%s'.", pqBranch)
	return nil
}

// Apply commits a single patch file onto the queue, switching to (or
// creating) the queue first. topic overrides the configured topic.
func (q *Queue) Apply(ctx context.Context, patchPath, topic string) error {
	abs, err := filepath.Abs(patchPath)
	if err != nil {
		return err
	}
	current, branch, err := q.currentBranch(ctx)
	if err != nil {
		return err
	}
	maintainer := q.maintainer(ctx, branch)
	if current == branch {
		if err := q.enterQueue(ctx, branch); err != nil {
			return err
		}
	}
	if topic == "" {
		topic = q.opts.Topic
	}
	if err := q.applyAndCommit(ctx, patch.New(abs), maintainer, topic, false); err != nil {
		return gbperrors.WrapGbpError(err, "Failed to apply '%s'", patchPath)
	}
	q.log.Info("Applied %s", filepath.Base(abs))
	return nil
}
