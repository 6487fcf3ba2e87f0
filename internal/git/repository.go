package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// Repository is a handle on an existing on-disk repository. Mutations go
// through the git command line, reads go through go-git.
type Repository struct {
	path   string
	gitDir string
	bare   bool
	runner *CommandRunner
}

// Open opens the repository whose top level (or git dir, for bare
// repositories) is path. It never creates anything.
func Open(ctx context.Context, path string) (*Repository, error) {
	absPath, err := canonicalPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", gbperrors.ErrNotARepository, path)
	}

	runner := NewCommandRunner(absPath)
	isBare, err := runner.Run(ctx, "rev-parse", "--is-bare-repository")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gbperrors.ErrNotARepository, path)
	}
	gitDir, err := runner.Run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", gbperrors.ErrNotARepository, path)
	}
	gitDir, err = canonicalPath(gitDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve git dir: %w", err)
	}

	bare := isBare == "true"
	top := gitDir
	if !bare {
		top, err = runner.Run(ctx, "rev-parse", "--show-toplevel")
		if err != nil {
			return nil, fmt.Errorf("%w: %s", gbperrors.ErrNotARepository, path)
		}
		if top, err = canonicalPath(top); err != nil {
			return nil, fmt.Errorf("failed to resolve top level: %w", err)
		}
	}
	if top != absPath {
		return nil, fmt.Errorf("%w: %s is not the top level of a repository", gbperrors.ErrNotARepository, path)
	}

	return &Repository{
		path:   absPath,
		gitDir: gitDir,
		bare:   bare,
		runner: runner,
	}, nil
}

// Create initializes a new repository at path and opens it
func Create(ctx context.Context, path string, bare bool) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, gbperrors.NewRepoError("create repository "+path, err)
	}
	args := []string{"init", "-q"}
	if bare {
		args = append(args, "--bare")
	}
	args = append(args, absPath)
	if _, err := NewCommandRunner(filepath.Dir(absPath)).Run(ctx, args...); err != nil {
		return nil, gbperrors.NewRepoError("create repository "+path, err)
	}
	return Open(ctx, absPath)
}

func canonicalPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}
	return absPath, nil
}

// Path returns the top level of the working copy, or the git dir of a bare repository
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the absolute git directory
func (r *Repository) GitDir() string {
	return r.gitDir
}

// IsBare reports whether the repository has no working copy
func (r *Repository) IsBare() bool {
	return r.bare
}

// open returns a fresh go-git handle so reads always see refs written by the
// git command line
func (r *Repository) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(r.path, &gogit.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// hasReference reports whether the given full reference exists
func (r *Repository) hasReference(name plumbing.ReferenceName) bool {
	repo, err := r.open()
	if err != nil {
		return false
	}
	_, err = repo.Reference(name, false)
	return err == nil
}

// RefValue returns the object a full reference (refs/heads/x, refs/tags/y)
// points to without peeling. ok is false when the ref does not exist.
func (r *Repository) RefValue(name string) (value string, ok bool, err error) {
	repo, err := r.open()
	if err != nil {
		return "", false, err
	}
	ref, err := repo.Reference(plumbing.ReferenceName(name), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read reference %s: %w", name, err)
	}
	if ref.Type() != plumbing.HashReference {
		return "", false, fmt.Errorf("reference %s is symbolic", name)
	}
	return ref.Hash().String(), true, nil
}

// IsEmpty reports whether the repository has no branches yet
func (r *Repository) IsEmpty(_ context.Context) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	branches, err := repo.Branches()
	if err != nil {
		return false, fmt.Errorf("failed to list branches: %w", err)
	}
	defer branches.Close()
	_, err = branches.Next()
	if err != nil {
		// io.EOF: no branch at all
		return true, nil
	}
	return false, nil
}

// RevParse resolves a revision expression to an object id
func (r *Repository) RevParse(ctx context.Context, rev string) (string, error) {
	sha, err := r.runner.Run(ctx, "rev-parse", "--quiet", "--verify", rev)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return sha, nil
}

// ResolveCommit resolves a revision to the commit it designates, peeling tags
func (r *Repository) ResolveCommit(ctx context.Context, rev string) (string, error) {
	return r.RevParse(ctx, rev+"^{commit}")
}

// HasTreeish reports whether rev names a commit or tree
func (r *Repository) HasTreeish(ctx context.Context, rev string) bool {
	_, err := r.RevParse(ctx, rev+"^{tree}")
	return err == nil
}
