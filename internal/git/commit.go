package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// Identity is an author or committer. Empty fields fall back to git's
// configured identity.
type Identity struct {
	Name  string
	Email string
	// Date is anything git accepts in GIT_AUTHOR_DATE
	Date string
}

// IsZero reports whether no field is set
func (i *Identity) IsZero() bool {
	return i == nil || (i.Name == "" && i.Email == "" && i.Date == "")
}

func (i *Identity) String() string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

func (i *Identity) env(kind string) []string {
	if i == nil {
		return nil
	}
	var env []string
	if i.Name != "" {
		env = append(env, fmt.Sprintf("GIT_%s_NAME=%s", kind, i.Name))
	}
	if i.Email != "" {
		env = append(env, fmt.Sprintf("GIT_%s_EMAIL=%s", kind, i.Email))
	}
	if i.Date != "" {
		env = append(env, fmt.Sprintf("GIT_%s_DATE=%s", kind, i.Date))
	}
	return env
}

// CommitTreeOptions describes a commit object to write
type CommitTreeOptions struct {
	Tree      string
	Message   string
	Parents   []string
	Author    *Identity
	Committer *Identity
}

// WriteTree writes the given index (the repository index when empty) as a
// tree object
func (r *Repository) WriteTree(ctx context.Context, indexFile string) (string, error) {
	var env []string
	if indexFile != "" {
		env = append(env, "GIT_INDEX_FILE="+indexFile)
	}
	tree, err := r.runner.RunWithEnv(ctx, env, "write-tree")
	if err != nil {
		return "", gbperrors.NewRepoError("write tree", err)
	}
	return tree, nil
}

// CommitTree writes a commit object without touching any ref
func (r *Repository) CommitTree(ctx context.Context, opts CommitTreeOptions) (string, error) {
	args := []string{"commit-tree", opts.Tree}
	for _, p := range opts.Parents {
		args = append(args, "-p", p)
	}
	env := append(opts.Author.env("AUTHOR"), opts.Committer.env("COMMITTER")...)
	sha, err := r.runner.runInternal(ctx, runOptions{input: opts.Message, env: env, trim: true}, args...)
	if err != nil {
		return "", gbperrors.NewRepoError("commit tree "+opts.Tree, err)
	}
	return sha, nil
}

// CommitDirOptions describes a directory snapshot to commit onto a branch
type CommitDirOptions struct {
	// Dir is the directory whose full content becomes the commit's tree
	Dir     string
	Message string
	Branch  string
	// OtherParents are merged in after the branch tip. Duplicates and the
	// branch tip itself are dropped.
	OtherParents        []string
	Author              *Identity
	Committer           *Identity
	CreateMissingBranch bool
}

// CommitDirectory commits the content of an arbitrary directory onto a
// branch without touching the working copy or the repository index. The
// branch is created when missing and CreateMissingBranch is set.
func (r *Repository) CommitDirectory(ctx context.Context, opts CommitDirOptions) (string, error) {
	op := fmt.Sprintf("commit %s to branch %s", opts.Dir, opts.Branch)

	var parents []string
	oldTip := MissingRef
	if tip, ok, err := r.RefValue(BranchRef(opts.Branch)); err != nil {
		return "", gbperrors.NewRepoError(op, err)
	} else if ok {
		oldTip = tip
		parents = append(parents, tip)
	} else if !opts.CreateMissingBranch {
		return "", gbperrors.NewRepoError(op, gbperrors.NewBranchNotFoundError(opts.Branch))
	}

	for _, rev := range opts.OtherParents {
		sha, err := r.ResolveCommit(ctx, rev)
		if err != nil {
			return "", gbperrors.NewRepoError(op, err)
		}
		if !containsString(parents, sha) {
			parents = append(parents, sha)
		}
	}

	tree, err := r.snapshotTree(ctx, opts.Dir)
	if err != nil {
		return "", gbperrors.NewRepoError(op, err)
	}

	sha, err := r.CommitTree(ctx, CommitTreeOptions{
		Tree:      tree,
		Message:   opts.Message,
		Parents:   parents,
		Author:    opts.Author,
		Committer: opts.Committer,
	})
	if err != nil {
		return "", err
	}

	if err := r.UpdateRef(ctx, BranchRef(opts.Branch), sha, oldTip, op); err != nil {
		return "", err
	}
	return sha, nil
}

// snapshotTree adds every file below dir to a throw-away index and writes
// it as a tree
func (r *Repository) snapshotTree(ctx context.Context, dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	indexFile := filepath.Join(r.gitDir, "gbp_index_"+uuid.NewString())
	defer func() { _ = os.Remove(indexFile) }()

	env := []string{
		"GIT_DIR=" + r.gitDir,
		"GIT_WORK_TREE=" + absDir,
		"GIT_INDEX_FILE=" + indexFile,
	}
	if _, err := r.runner.runInternal(ctx, runOptions{dir: absDir, env: env}, "add", "-f", "-A", "."); err != nil {
		return "", err
	}
	tree, err := r.runner.runInternal(ctx, runOptions{dir: absDir, env: env, trim: true}, "write-tree")
	if err != nil {
		return "", err
	}
	return tree, nil
}

// AddFiles stages paths in the repository index
func (r *Repository) AddFiles(ctx context.Context, paths []string, force bool) error {
	args := []string{"add", "-A"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, "--")
	args = append(args, paths...)
	if _, err := r.runner.Run(ctx, args...); err != nil {
		return gbperrors.NewRepoError("add "+strings.Join(paths, " "), err)
	}
	return nil
}

// CommitStaged commits the current index onto the checked-out branch
func (r *Repository) CommitStaged(ctx context.Context, msg string) error {
	if _, err := r.runner.Run(ctx, "commit", "--quiet", "-m", msg); err != nil {
		return gbperrors.NewRepoError("commit", err)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
