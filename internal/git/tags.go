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

// TagRef returns the full reference name of a tag
func TagRef(name string) string {
	return plumbing.NewTagReferenceName(name).String()
}

// TagOptions describes a tag to create
type TagOptions struct {
	Name    string
	Message string
	// Commit defaults to HEAD
	Commit string
	Sign   bool
	KeyID  string
}

// HasTag reports whether a tag exists
func (r *Repository) HasTag(_ context.Context, name string) bool {
	return r.hasReference(plumbing.NewTagReferenceName(name))
}

// Tags returns all tag names, sorted
func (r *Repository) Tags(_ context.Context) ([]string, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CreateTag creates a tag, annotated when a message is given. An existing
// tag is never replaced.
func (r *Repository) CreateTag(ctx context.Context, opts TagOptions) error {
	op := "create tag " + opts.Name
	if r.HasTag(ctx, opts.Name) {
		return gbperrors.NewRepoError(op, fmt.Errorf("tag %s already exists", opts.Name))
	}
	args := []string{"tag"}
	switch {
	case opts.Sign && opts.KeyID != "":
		args = append(args, "-u", opts.KeyID)
	case opts.Sign:
		args = append(args, "-s")
	}
	if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	args = append(args, opts.Name)
	if opts.Commit != "" {
		args = append(args, opts.Commit)
	}
	if _, err := r.runner.Run(ctx, args...); err != nil {
		return gbperrors.NewRepoError(op, err)
	}
	return nil
}

// MoveTag renames a tag, keeping the object it points to
func (r *Repository) MoveTag(ctx context.Context, oldName, newName string) error {
	op := fmt.Sprintf("move tag %s to %s", oldName, newName)
	if _, err := r.runner.Run(ctx, "tag", newName, oldName); err != nil {
		return gbperrors.NewRepoError(op, err)
	}
	if _, err := r.runner.Run(ctx, "tag", "-d", oldName); err != nil {
		return gbperrors.NewRepoError(op, err)
	}
	return nil
}
