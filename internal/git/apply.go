package git

import (
	"context"
	"fmt"
	"path/filepath"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// NoStrip leaves the strip level to git apply's default
const NoStrip = -1

// ApplyOptions tweaks ApplyPatch
type ApplyOptions struct {
	// Strip is passed as -p<n> unless it is NoStrip
	Strip int
	// FixWhitespace lets git repair trailing whitespace instead of rejecting hunks
	FixWhitespace bool
	// Index updates the index along with the work tree
	Index bool
}

// ApplyPatch applies a patch file to the working copy
func (r *Repository) ApplyPatch(ctx context.Context, patchPath string, opts ApplyOptions) error {
	abs, err := filepath.Abs(patchPath)
	if err != nil {
		return err
	}
	if _, err := r.runner.Run(ctx, applyArgs(abs, opts)...); err != nil {
		return gbperrors.NewRepoError("apply patch "+filepath.Base(patchPath), err)
	}
	return nil
}

// ApplyPatchInDir applies a patch to a plain directory that is not a
// repository
func ApplyPatchInDir(ctx context.Context, dir, patchPath string, opts ApplyOptions) error {
	abs, err := filepath.Abs(patchPath)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	// Keep git from discovering an enclosing repository
	env := []string{"GIT_CEILING_DIRECTORIES=" + filepath.Dir(absDir)}
	opts.Index = false
	runner := NewCommandRunner(absDir)
	if _, err := runner.RunWithEnv(ctx, env, applyArgs(abs, opts)...); err != nil {
		return fmt.Errorf("failed to apply %s: %w", filepath.Base(patchPath), err)
	}
	return nil
}

func applyArgs(patchPath string, opts ApplyOptions) []string {
	args := []string{"apply"}
	if opts.Index {
		args = append(args, "--index")
	}
	if opts.Strip != NoStrip {
		args = append(args, fmt.Sprintf("-p%d", opts.Strip))
	}
	if opts.FixWhitespace {
		args = append(args, "--whitespace=fix")
	}
	return append(args, patchPath)
}
