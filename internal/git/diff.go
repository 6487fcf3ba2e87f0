package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DiffOptions tweaks Diff
type DiffOptions struct {
	// Abbrev is the length of abbreviated object names in index lines
	Abbrev int
	// Stat prepends a diffstat and summary the way format-patch does
	Stat bool
	Paths []string
}

// Diff returns the textual diff between two revisions
func (r *Repository) Diff(ctx context.Context, from, to string, opts DiffOptions) (string, error) {
	args := []string{"diff", "--no-ext-diff", "--no-color", "--text", "-M"}
	if opts.Stat {
		args = append(args, "--stat=80", "--summary", "-p")
	}
	if opts.Abbrev > 0 {
		args = append(args, "--abbrev="+strconv.Itoa(opts.Abbrev))
	}
	args = append(args, from, to)
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}
	out, err := r.runner.RunRaw(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}
	return out, nil
}

// RevListOptions selects commits for RevList
type RevListOptions struct {
	// Range is anything rev-list accepts, "a..b" or a single revision
	Range       string
	FirstParent bool
	// Max limits the number of commits when positive
	Max     int
	Reverse bool
}

// RevList returns commit ids, newest first unless Reverse is set
func (r *Repository) RevList(ctx context.Context, opts RevListOptions) ([]string, error) {
	args := []string{"rev-list"}
	if opts.FirstParent {
		args = append(args, "--first-parent")
	}
	if opts.Max > 0 {
		args = append(args, "--max-count="+strconv.Itoa(opts.Max))
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	args = append(args, opts.Range, "--")
	commits, err := r.runner.RunLines(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits %s: %w", opts.Range, err)
	}
	return commits, nil
}

// TreeEntry is one file of a tree listing
type TreeEntry struct {
	Path string
	Mode filemode.FileMode
	Hash string
}

func (r *Repository) commitTree(ctx context.Context, rev string) (*object.Tree, error) {
	sha, err := r.ResolveCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", sha, err)
	}
	return tree, nil
}

// ListTree returns every file of rev recursively
func (r *Repository) ListTree(ctx context.Context, rev string) ([]TreeEntry, error) {
	tree, err := r.commitTree(ctx, rev)
	if err != nil {
		return nil, err
	}
	var entries []TreeEntry
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk tree of %s: %w", rev, err)
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		entries = append(entries, TreeEntry{Path: name, Mode: entry.Mode, Hash: entry.Hash.String()})
	}
	return entries, nil
}

// ShowFile returns the content of path at rev. A missing file gives an
// error matching fs.ErrNotExist.
func (r *Repository) ShowFile(ctx context.Context, rev, path string) (string, error) {
	tree, err := r.commitTree(ctx, rev)
	if err != nil {
		return "", err
	}
	file, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return "", fmt.Errorf("%s at %s: %w", path, rev, fs.ErrNotExist)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s at %s: %w", path, rev, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("failed to read %s at %s: %w", path, rev, err)
	}
	return content, nil
}
