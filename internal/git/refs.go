package git

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// MissingRef as the old value of UpdateRef requires that ref does not exist
var MissingRef = plumbing.ZeroHash.String()

// UpdateRef points ref at value. When old is non-empty the update only
// succeeds if ref currently has that value.
func (r *Repository) UpdateRef(ctx context.Context, ref, value, old, msg string) error {
	args := []string{"update-ref"}
	if msg != "" {
		args = append(args, "-m", msg)
	}
	args = append(args, ref, value)
	if old != "" {
		args = append(args, old)
	}
	if _, err := r.runner.Run(ctx, args...); err != nil {
		return gbperrors.NewRepoError("update "+ref, err)
	}
	return nil
}

// DeleteRef removes a reference. Unlike DeleteBranch it also works on the
// checked-out branch.
func (r *Repository) DeleteRef(ctx context.Context, ref string) error {
	if _, err := r.runner.Run(ctx, "update-ref", "-d", ref); err != nil {
		return gbperrors.NewRepoError("delete "+ref, err)
	}
	return nil
}
