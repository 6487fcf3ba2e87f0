package pq

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/patch"
	"github.com/agx/git-buildpackage-sub001/internal/rollback"
)

// Import creates the patch queue of the checked-out branch from its quilt
// series and leaves the queue checked out
func (q *Queue) Import(ctx context.Context) error {
	current, _, err := q.currentBranch(ctx)
	if err != nil {
		return err
	}
	if IsPQBranch(current) {
		if !q.opts.Force {
			q.log.Info("Already on a patch-queue branch '%s' - doing nothing.", current)
			return nil
		}
		base, _ := BranchBase(current)
		if err := q.repo.Checkout(ctx, base); err != nil {
			return err
		}
		current = base
	}
	return q.importQueue(ctx, current)
}

func (q *Queue) importQueue(ctx context.Context, branch string) error {
	pqBranch := BranchName(branch)
	if q.repo.HasBranch(ctx, pqBranch) {
		if !q.opts.Force {
			return gbperrors.NewGbpErrorKind(gbperrors.ErrQueueExists,
				"Patch queue branch '%s'. already exists. Try 'rebase' or 'switch' instead.", pqBranch)
		}
		if err := q.dropQueue(ctx, branch); err != nil {
			return err
		}
	}

	maintainer := q.maintainer(ctx, branch)
	bases, err := q.importBases(ctx, branch)
	if err != nil {
		return err
	}

	series, cleanup, err := q.safePatches()
	if err != nil {
		return err
	}
	defer cleanup()

	var lastErr error
	for _, base := range bases {
		err := q.importAt(ctx, branch, base, series, maintainer)
		if err == nil {
			if len(series) == 0 {
				q.log.Info("No patches found in '%s'", SeriesPath)
			}
			q.log.Info("%d patches listed in '%s' imported on '%s'", len(series), SeriesPath, pqBranch)
			return nil
		}
		if !errors.Is(err, errPatchFailed) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return &gbperrors.PatchImportError{Branch: pqBranch, Tries: len(bases), Err: lastErr}
}

// errPatchFailed classifies a patch that did not apply at one base commit
var errPatchFailed = errors.New("patch failed to apply")

// importBases lists the commits to try the series on, newest first
func (q *Queue) importBases(ctx context.Context, branch string) ([]string, error) {
	if q.opts.PQFrom == config.PQFromTag {
		sha, err := q.upstreamCommit(ctx, branch)
		if err != nil {
			return nil, err
		}
		return []string{sha}, nil
	}
	tries := max(q.opts.TimeMachine, 1)
	commits, err := q.repo.RevList(ctx, git.RevListOptions{Range: branch, FirstParent: true, Max: tries})
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, gbperrors.NewGbpError("Branch '%s' has no commits", branch)
	}
	return commits, nil
}

// importAt builds the queue on base. On failure the queue branch is
// abandoned and branch checked out again.
func (q *Queue) importAt(ctx context.Context, branch, base string, series patch.Series, maintainer *git.Identity) error {
	pqBranch := BranchName(branch)
	journal := rollback.New(q.repo, q.log)
	if err := journal.Record(ctx, pqBranch, rollback.Branch, rollback.Delete); err != nil {
		return err
	}

	q.log.Info("Trying to apply patches at '%s'", base)
	if err := q.repo.CreateBranch(ctx, pqBranch, base, false); err != nil {
		return gbperrors.WrapGbpError(err, "Cannot create patch-queue branch '%s'. Try 'rebase' instead.", pqBranch)
	}
	if err := q.repo.Checkout(ctx, pqBranch); err != nil {
		return errors.Join(err, journal.Rollback(context.WithoutCancel(ctx)))
	}

	for _, p := range series {
		q.log.Debug("Applying %s", p.Path)
		if err := q.applyAndCommit(ctx, p, maintainer, p.Topic, true); err != nil {
			q.log.Error("Failed to apply '%s': %v", p.Path, err)
			cause := fmt.Errorf("%w: %s: %w", errPatchFailed, p.Name, err)
			return errors.Join(cause, q.abandon(ctx, branch, journal))
		}
	}
	journal.Discard()
	return nil
}

// abandon throws away a half built queue and returns to branch
func (q *Queue) abandon(ctx context.Context, branch string, journal *rollback.Journal) error {
	ctx = context.WithoutCancel(ctx)
	if err := q.repo.ForceHead(ctx, "HEAD", true); err != nil {
		return err
	}
	if err := q.repo.Checkout(ctx, branch); err != nil {
		return err
	}
	return journal.Rollback(ctx)
}

// applyAndCommit applies p to the index and work tree and commits the
// result on top of HEAD. With named set the commit message records the file
// name so an export restores it.
func (q *Queue) applyAndCommit(ctx context.Context, p *patch.Patch, fallback *git.Identity, topic string, named bool) error {
	if err := p.ReadInfo(); err != nil {
		return err
	}
	fileName := filepath.Base(p.Path)

	author := &git.Identity{Name: p.Author, Email: p.Email, Date: p.Date}
	if p.Author == "" || p.Email == "" {
		if fallback != nil && fallback.Name != "" {
			author = &git.Identity{Name: fallback.Name, Email: fallback.Email, Date: p.Date}
			q.log.Warn("Patch '%s' has no authorship information, using '%s <%s>'", fileName, fallback.Name, fallback.Email)
		} else {
			author = &git.Identity{Date: p.Date}
			q.log.Warn("Patch '%s' has no authorship information", fileName)
		}
	}

	opts := git.ApplyOptions{Strip: p.Strip, Index: true}
	if err := q.repo.ApplyPatch(ctx, p.Path, opts); err != nil {
		q.log.Warn("Patch %s failed to apply, retrying with whitespace fixup", p.Path)
		opts.FixWhitespace = true
		if err := q.repo.ApplyPatch(ctx, p.Path, opts); err != nil {
			return err
		}
	}

	tree, err := q.repo.WriteTree(ctx, "")
	if err != nil {
		return err
	}
	head, err := q.repo.ResolveCommit(ctx, "HEAD")
	if err != nil {
		return err
	}

	commit, err := q.repo.CommitTree(ctx, git.CommitTreeOptions{
		Tree:    tree,
		Message: commitMessage(p, topic, named),
		Parents: []string{head},
		Author:  author,
	})
	if err != nil {
		return err
	}
	return q.repo.UpdateRef(ctx, "HEAD", commit, head, "gbp-pq import "+p.Name)
}

// commitMessage builds the message of an imported patch: subject, the long
// description if any, then the Gbp-Pq trailers
func commitMessage(p *patch.Patch, topic string, named bool) string {
	var b strings.Builder
	b.WriteString(p.Subject + "\n")
	if desc := strings.Trim(p.LongDesc, "\n"); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	if topic == "" && !named {
		return b.String()
	}
	b.WriteString("\n")
	if topic != "" {
		b.WriteString("Gbp-Pq: Topic " + topic + "\n")
	}
	if named {
		b.WriteString("Gbp-Pq: Name " + filepath.Base(p.Path) + "\n")
	}
	return b.String()
}
