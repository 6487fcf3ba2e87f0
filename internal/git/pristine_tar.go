package git

import (
	"context"
	"path/filepath"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// PristineTarCommit stores the delta needed to regenerate tarball from the
// tree of commit on the pristine-tar branch
func (r *Repository) PristineTarCommit(ctx context.Context, tarball, commit string) error {
	abs, err := filepath.Abs(tarball)
	if err != nil {
		return err
	}
	if _, err := r.runner.RunTool(ctx, "pristine-tar", "commit", abs, commit); err != nil {
		return gbperrors.NewRepoError("pristine-tar commit "+filepath.Base(tarball), err)
	}
	return nil
}
