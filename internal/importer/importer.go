package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	"github.com/agx/git-buildpackage-sub001/internal/dsc"
	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/output"
	"github.com/agx/git-buildpackage-sub001/internal/rollback"
)

// Importer imports source packages with a fixed set of options
type Importer struct {
	log  output.Logger
	opts config.ImportDsc
	now  func() time.Time
}

// New creates an importer
func New(log output.Logger, opts config.ImportDsc) *Importer {
	return &Importer{log: log, opts: opts, now: time.Now}
}

// run is the state of a single import
type run struct {
	repo    *git.Repository
	src     *dsc.Descriptor
	journal *rollback.Journal
	out     *Outcome
	empty   bool
	// tagMoved is set when an existing packaging tag was renamed. Its
	// journal entry restores the old tag, so the new one needs none.
	tagMoved  bool
	author    *git.Identity
	committer *git.Identity
}

// Import imports the source package described by the .dsc at path. A
// skipped version is not an error. On failure every ref change is rolled
// back and the returned outcome is Failed.
func (im *Importer) Import(ctx context.Context, path string) (*Outcome, error) {
	src, err := dsc.ParseFile(path)
	if err != nil {
		return fail(&Outcome{}, err)
	}
	return im.importSource(ctx, src, im.opts.Repo)
}

func fail(out *Outcome, err error) (*Outcome, error) {
	out.Kind = Failed
	out.Err = err
	return out, err
}

func (im *Importer) importSource(ctx context.Context, src *dsc.Descriptor, target string) (*Outcome, error) {
	out := &Outcome{Package: src.Package, Version: src.Version}
	debianTag, err := git.VersionToTag(im.opts.DebianTag, src.Version)
	if err != nil {
		return fail(out, err)
	}
	out.Tag = debianTag

	repo, err := im.openOrCreate(ctx, src.Package, target)
	if err != nil {
		return fail(out, err)
	}
	out.RepoPath = repo.Path()

	empty, err := repo.IsEmpty(ctx)
	if err != nil {
		return fail(out, err)
	}
	if !empty {
		clean, err := repo.IsClean(ctx)
		if err != nil {
			return fail(out, err)
		}
		if !clean {
			return fail(out, gbperrors.NewGbpErrorKind(gbperrors.ErrDirtyRepository,
				"Repository has uncommitted changes, commit these first"))
		}
	}

	r := &run{repo: repo, src: src, journal: rollback.New(repo, im.log), out: out, empty: empty}
	if err := im.runImport(ctx, r); err != nil {
		if ctx.Err() != nil {
			im.log.Error("Interrupted. Aborting.")
		}
		if rbErr := r.journal.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return fail(out, err)
	}
	r.journal.Discard()
	return out, nil
}

// openOrCreate opens target, the current directory or a new repository
// named after the package, in that order
func (im *Importer) openOrCreate(ctx context.Context, pkg, target string) (*git.Repository, error) {
	if target == "" {
		if repo, err := git.Open(ctx, "."); err == nil {
			return repo, nil
		}
		target = pkg
	}
	repo, err := git.Open(ctx, target)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, gbperrors.ErrNotARepository) {
		return nil, err
	}
	if _, statErr := os.Stat(target); statErr == nil {
		return nil, gbperrors.NewGbpErrorKind(gbperrors.ErrDirectoryExists,
			"Directory '%s' already exists. If you want to import into it, please change into this directory otherwise specify a different target.", target)
	}
	im.log.Info("No git repository found, creating one in '%s'", target)
	return git.Create(ctx, target, im.opts.Bare)
}

func (im *Importer) runImport(ctx context.Context, r *run) error {
	if r.repo.HasTag(ctx, r.out.Tag) {
		if !im.opts.AllowSameVersion {
			r.out.Kind = Skipped
			r.out.Reason = fmt.Sprintf("Version '%s' already imported", r.src.Version)
			im.log.Warn("Version '%s' already imported.", r.src.Version)
			return nil
		}
		if err := im.moveTagAside(ctx, r); err != nil {
			return err
		}
	}

	work, err := os.MkdirTemp("", "gbp-import-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	srcs, err := im.unpack(ctx, r.src, work)
	if err != nil {
		return gbperrors.WrapGbpError(err, "Failed to unpack %s", r.src)
	}
	im.identities(r, srcs.packaging)

	var upstreamCommit string
	if !r.src.Native {
		if upstreamCommit, err = im.importUpstream(ctx, r, srcs.upstream); err != nil {
			return err
		}
	}
	if err := im.importPackaging(ctx, r, srcs.packaging, upstreamCommit); err != nil {
		return err
	}
	if err := im.updateWorkingCopy(ctx, r); err != nil {
		return err
	}

	r.out.Kind = Imported
	im.log.Info("Version '%s' imported under '%s'", r.src.Version, r.repo.Path())
	return nil
}

// moveTagAside renames an existing packaging tag to <tag>_<unix time>
func (im *Importer) moveTagAside(ctx context.Context, r *run) error {
	moved := fmt.Sprintf("%s_%d", r.out.Tag, im.now().Unix())
	if err := r.journal.Record(ctx, r.out.Tag, rollback.Tag, rollback.Reset); err != nil {
		return err
	}
	if err := r.journal.Record(ctx, moved, rollback.Tag, rollback.Delete); err != nil {
		return err
	}
	im.log.Info("Version '%s' already imported, moving tag '%s' to '%s'", r.src.Version, r.out.Tag, moved)
	if err := r.repo.MoveTag(ctx, r.out.Tag, moved); err != nil {
		return err
	}
	r.tagMoved = true
	return nil
}

// identities picks author and committer from the top changelog entry
func (im *Importer) identities(r *run, dir string) {
	entry, err := readChangelog(dir)
	if err != nil {
		im.log.Warn("Can't read the changelog, using the configured git identity: %v", err)
		return
	}
	r.author = &git.Identity{
		Name:  entry.AuthorName,
		Email: entry.AuthorEmail,
		Date:  fmt.Sprintf("%d %s", entry.When.Unix(), entry.When.Format("-0700")),
	}
	if im.opts.AuthorIsCommitter {
		r.committer = &git.Identity{Name: entry.AuthorName, Email: entry.AuthorEmail}
	}
	if im.opts.AuthorDateIsCommitterDate {
		if r.committer == nil {
			r.committer = &git.Identity{}
		}
		r.committer.Date = r.author.Date
	}
}

// requireBranch fails unless branch exists or may be created
func (im *Importer) requireBranch(ctx context.Context, r *run, branch, what string) error {
	if r.repo.HasBranch(ctx, branch) || r.empty {
		return nil
	}
	if !im.opts.CreateMissingBranches {
		return gbperrors.NewGbpError(
			"Repository does not have branch '%s' for %s. If there is none see --create-missing-branches", branch, what)
	}
	im.log.Info("Creating missing branch '%s'", branch)
	return nil
}

// importUpstream commits and tags the upstream sources unless the version
// is tagged already and returns the upstream commit
func (im *Importer) importUpstream(ctx context.Context, r *run, dir string) (string, error) {
	tag, err := git.VersionToTag(im.opts.UpstreamTag, r.src.UpstreamVersion)
	if err != nil {
		return "", err
	}
	r.out.UpstreamTag = tag
	existing, found, err := r.repo.FindVersion(ctx, im.opts.UpstreamTag, r.src.UpstreamVersion)
	if err != nil {
		return "", err
	}
	if found {
		im.log.Info("Upstream version %s already imported.", r.src.UpstreamVersion)
		return existing, nil
	}

	im.log.Info("Tag %s not found, importing upstream version %s", tag, r.src.UpstreamVersion)
	branch := im.opts.UpstreamBranch
	if err := im.requireBranch(ctx, r, branch, "upstream sources"); err != nil {
		return "", err
	}
	if err := r.journal.RecordBranch(ctx, branch); err != nil {
		return "", err
	}
	commit, err := r.repo.CommitDirectory(ctx, git.CommitDirOptions{
		Dir:                 dir,
		Message:             fmt.Sprintf("Import Upstream version %s", r.src.UpstreamVersion),
		Branch:              branch,
		Author:              r.author,
		Committer:           r.committer,
		CreateMissingBranch: true,
	})
	if err != nil {
		return "", err
	}
	if err := r.journal.Record(ctx, tag, rollback.Tag, rollback.Delete); err != nil {
		return "", err
	}
	if err := r.repo.CreateTag(ctx, git.TagOptions{
		Name:    tag,
		Message: fmt.Sprintf("Upstream version %s", r.src.UpstreamVersion),
		Commit:  commit,
		Sign:    im.opts.SignTags,
		KeyID:   im.opts.KeyID,
	}); err != nil {
		return "", err
	}
	if err := im.pristineTar(ctx, r, commit); err != nil {
		return "", err
	}
	return commit, nil
}

// pristineTar records every tarball of the package on the pristine-tar
// branch. Components are stored against their subtree.
func (im *Importer) pristineTar(ctx context.Context, r *run, commit string) error {
	if !im.opts.PristineTar {
		return nil
	}
	if r.repo.IsBare() {
		im.log.Warn("Skipping pristine-tar in bare repository '%s'", r.repo.Path())
		return nil
	}
	if err := r.journal.RecordBranch(ctx, im.opts.PristineTarBranch); err != nil {
		return err
	}
	components := r.src.ComponentNames()
	for i, tarball := range r.src.Tarballs() {
		treeish := commit
		if i > 0 {
			treeish = commit + ":" + components[i-1]
		}
		if err := r.repo.PristineTarCommit(ctx, tarball, treeish); err != nil {
			return err
		}
	}
	return nil
}

// importPackaging commits the unpacked package onto the packaging branch,
// merging in the upstream commit, and tags it
func (im *Importer) importPackaging(ctx context.Context, r *run, dir, upstreamCommit string) error {
	branch := im.opts.DebianBranch
	if err := im.requireBranch(ctx, r, branch, "Debian packaging"); err != nil {
		return err
	}
	if err := r.journal.RecordBranch(ctx, branch); err != nil {
		return err
	}

	opts := git.CommitDirOptions{
		Dir:                 dir,
		Message:             fmt.Sprintf("Import Debian changes %s", r.src.Version),
		Branch:              branch,
		Author:              r.author,
		Committer:           r.committer,
		CreateMissingBranch: true,
	}
	if r.src.Native {
		opts.Message = fmt.Sprintf("Import Debian version %s", r.src.Version)
	} else {
		opts.OtherParents = []string{upstreamCommit}
	}
	commit, err := r.repo.CommitDirectory(ctx, opts)
	if err != nil {
		return err
	}
	r.out.Commit = commit

	if im.opts.SkipDebianTag {
		return nil
	}
	if !r.tagMoved {
		if err := r.journal.Record(ctx, r.out.Tag, rollback.Tag, rollback.Delete); err != nil {
			return err
		}
	}
	return r.repo.CreateTag(ctx, git.TagOptions{
		Name:    r.out.Tag,
		Message: fmt.Sprintf("Debian release %s", r.src.Version),
		Commit:  commit,
		Sign:    im.opts.SignTags,
		KeyID:   im.opts.KeyID,
	})
}

// updateWorkingCopy refreshes index and work tree when the packaging
// branch is checked out or the repository was empty
func (im *Importer) updateWorkingCopy(ctx context.Context, r *run) error {
	if r.repo.IsBare() {
		return nil
	}
	current, err := r.repo.CurrentBranch(ctx)
	if err != nil && !errors.Is(err, gbperrors.ErrNotOnBranch) {
		return err
	}
	switch {
	case current == im.opts.DebianBranch:
		return r.repo.ForceHead(ctx, im.opts.DebianBranch, true)
	case r.empty:
		return r.repo.Checkout(ctx, im.opts.DebianBranch)
	}
	return nil
}
