package git

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// BranchRef returns the full reference name of a local branch
func BranchRef(name string) string {
	return plumbing.NewBranchReferenceName(name).String()
}

// HasBranch reports whether a local branch exists
func (r *Repository) HasBranch(_ context.Context, name string) bool {
	return r.hasReference(plumbing.NewBranchReferenceName(name))
}

// BranchTip returns the commit a branch points to
func (r *Repository) BranchTip(ctx context.Context, name string) (string, error) {
	sha, ok, err := r.RefValue(BranchRef(name))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", gbperrors.NewBranchNotFoundError(name)
	}
	return sha, nil
}

// Branches returns all local branch names, sorted
func (r *Repository) Branches(_ context.Context) ([]string, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch returns the branch HEAD points to. It works on an unborn
// branch and fails with ErrNotOnBranch when HEAD is detached.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.runner.Run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil || name == "" {
		return "", gbperrors.ErrNotOnBranch
	}
	return name, nil
}

// CreateBranch creates a branch at start (HEAD when empty). An existing
// branch is only replaced when force is set.
func (r *Repository) CreateBranch(ctx context.Context, name, start string, force bool) error {
	op := "create branch " + name
	if r.HasBranch(ctx, name) && !force {
		return gbperrors.NewRepoError(op, fmt.Errorf("branch %s already exists", name))
	}
	args := []string{"branch"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, name)
	if start != "" {
		args = append(args, start)
	}
	if _, err := r.runner.Run(ctx, args...); err != nil {
		return gbperrors.NewRepoError(op, err)
	}
	return nil
}

// DeleteBranch deletes a branch that is not checked out
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	op := "delete branch " + name
	if current, err := r.CurrentBranch(ctx); err == nil && current == name {
		return gbperrors.NewRepoError(op, fmt.Errorf("can't delete the branch you're on"))
	}
	if _, err := r.runner.Run(ctx, "branch", "-D", name); err != nil {
		return gbperrors.NewRepoError(op, err)
	}
	return nil
}

// Checkout switches the working copy to a branch or revision
func (r *Repository) Checkout(ctx context.Context, rev string) error {
	if _, err := r.runner.Run(ctx, "checkout", "--quiet", rev); err != nil {
		return gbperrors.NewRepoError("checkout "+rev, err)
	}
	return nil
}

// ForceHead resets the current branch to rev, refreshing index and work tree
// when hard is set
func (r *Repository) ForceHead(ctx context.Context, rev string, hard bool) error {
	args := []string{"reset", "--quiet"}
	if hard {
		args = append(args, "--hard")
	}
	args = append(args, rev, "--")
	if _, err := r.runner.Run(ctx, args...); err != nil {
		return gbperrors.NewRepoError("reset to "+rev, err)
	}
	return nil
}
