// Package pq manages a quilt patch series as a git branch: one commit per
// patch on patch-queue/<branch>, imported from and exported back to
// debian/patches.
package pq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	"github.com/agx/git-buildpackage-sub001/internal/dsc"
	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/output"
	"github.com/agx/git-buildpackage-sub001/internal/patch"
)

// Locations inside the packaging tree
const (
	PatchDir      = "debian/patches"
	SeriesPath    = PatchDir + "/" + patch.SeriesFile
	ControlPath   = "debian/control"
	ChangelogPath = "debian/changelog"
)

// Queue runs patch-queue operations on a repository with a working copy
type Queue struct {
	repo *git.Repository
	log  output.Logger
	opts config.PQ
}

// New creates a Queue
func New(repo *git.Repository, log output.Logger, opts config.PQ) *Queue {
	return &Queue{repo: repo, log: log, opts: opts}
}

// currentBranch returns the checked-out branch along with its base branch
func (q *Queue) currentBranch(ctx context.Context) (current, base string, err error) {
	if q.repo.IsBare() {
		return "", "", gbperrors.NewGbpError("patch queues need a working copy, %s is bare", q.repo.Path())
	}
	current, err = q.repo.CurrentBranch(ctx)
	if err != nil {
		return "", "", gbperrors.WrapGbpError(err, "Not on a branch")
	}
	if b, ok := BranchBase(current); ok {
		return current, b, nil
	}
	return current, current, nil
}

// maintainer returns the Maintainer of debian/control on branch, or nil
func (q *Queue) maintainer(ctx context.Context, branch string) *git.Identity {
	content, err := q.repo.ShowFile(ctx, branch, ControlPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			q.log.Debug("Can't read %s: %v", ControlPath, err)
		}
		return nil
	}
	name, email, err := dsc.ReadMaintainer(strings.NewReader(content))
	if err != nil || name == "" {
		q.log.Debug("No usable maintainer in %s: %v", ControlPath, err)
		return nil
	}
	return &git.Identity{Name: name, Email: email}
}

// upstreamCommit finds the commit of the upstream tag matching the
// changelog version on branch
func (q *Queue) upstreamCommit(ctx context.Context, branch string) (string, error) {
	content, err := q.repo.ShowFile(ctx, branch, ChangelogPath)
	if err != nil {
		return "", gbperrors.WrapGbpError(err, "Can't read %s on '%s'", ChangelogPath, branch)
	}
	entry, err := dsc.ReadChangelog(strings.NewReader(content))
	if err != nil {
		return "", gbperrors.WrapGbpError(err, "Can't parse %s on '%s'", ChangelogPath, branch)
	}
	tag, err := git.VersionToTag(q.opts.UpstreamTag, entry.UpstreamVersion)
	if err != nil {
		return "", err
	}
	sha, found, err := q.repo.FindVersion(ctx, q.opts.UpstreamTag, entry.UpstreamVersion)
	if err != nil {
		return "", err
	}
	if !found {
		return "", gbperrors.NewGbpError("Couldn't find upstream version ('%s' not found)", tag)
	}
	return sha, nil
}

// basePoint is where the queue of branch starts: the upstream tag with
// pq-from TAG, the branch itself otherwise
func (q *Queue) basePoint(ctx context.Context, branch string) (string, error) {
	if q.opts.PQFrom == config.PQFromTag {
		return q.upstreamCommit(ctx, branch)
	}
	return branch, nil
}

// safePatches copies the patch directory of the working copy below the git
// dir, so it survives checking out the queue branch. The returned cleanup
// removes the copy.
func (q *Queue) safePatches() (patch.Series, func(), error) {
	src := filepath.Join(q.repo.Path(), filepath.FromSlash(PatchDir))
	if _, err := os.Stat(filepath.Join(src, patch.SeriesFile)); errors.Is(err, fs.ErrNotExist) {
		return patch.Series{}, func() {}, nil
	}
	tmp, err := os.MkdirTemp(q.repo.GitDir(), "gbp-pq")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }
	dst := filepath.Join(tmp, "patches")
	q.log.Debug("Safeguarding %s in %s", src, dst)
	if err := cp.Copy(src, dst); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to copy %s: %w", PatchDir, err)
	}
	series, err := patch.ReadSeriesFile(filepath.Join(dst, patch.SeriesFile))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return series, cleanup, nil
}

// switchToQueue checks out the queue of branch unless already on it
func (q *Queue) switchToQueue(ctx context.Context, branch string) error {
	if IsPQBranch(branch) {
		return nil
	}
	pqBranch := BranchName(branch)
	if !q.repo.HasBranch(ctx, pqBranch) {
		return gbperrors.NewGbpError("Branch '%s' does not exist, try 'import' instead", pqBranch)
	}
	q.log.Info("Switching to '%s'", pqBranch)
	return q.repo.Checkout(ctx, pqBranch)
}

// maybeImport imports the queue of branch when it does not exist yet
func (q *Queue) maybeImport(ctx context.Context, branch string) (bool, error) {
	if q.repo.HasBranch(ctx, BranchName(branch)) {
		return false, nil
	}
	q.log.Info("No pq branch found, importing patches")
	if err := q.importQueue(ctx, branch); err != nil {
		return false, err
	}
	return true, nil
}
