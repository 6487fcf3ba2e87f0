// Package rollback records undoable repository changes made by a
// multi-step command and replays their inverse when the command fails.
package rollback

import (
	"context"
	"fmt"
	"sync"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/output"
)

// RefType is the kind of reference an entry is about
type RefType string

const (
	Branch RefType = "branch"
	Tag    RefType = "tag"
)

// Action is the undo action of an entry
type Action string

const (
	// Reset restores the value the ref had when the entry was recorded
	Reset Action = "reset"
	// Delete removes a ref the command is about to create
	Delete Action = "delete"
	// AbortMerge aborts a merge left in progress
	AbortMerge Action = "abortmerge"
)

// Entry is one recorded undo action. Saved is empty when the ref did not
// exist at record time, or for actions that need no saved value.
type Entry struct {
	Ref    string
	Type   RefType
	Action Action
	Saved  string
}

// FullRef returns the full reference name of the entry
func (e Entry) FullRef() string {
	if e.Type == Tag {
		return git.TagRef(e.Ref)
	}
	return git.BranchRef(e.Ref)
}

// Repo is what the journal needs from a repository
type Repo interface {
	RefValue(name string) (string, bool, error)
	UpdateRef(ctx context.Context, ref, value, old, msg string) error
	DeleteRef(ctx context.Context, ref string) error
	IsInMerge(ctx context.Context) bool
	AbortMerge(ctx context.Context) error
}

var _ Repo = (*git.Repository)(nil)

// Journal is an in-memory log of undo actions for one command invocation
type Journal struct {
	mu      sync.Mutex
	repo    Repo
	log     output.Logger
	entries []Entry
}

// New creates an empty journal for repo
func New(repo Repo, log output.Logger) *Journal {
	return &Journal{repo: repo, log: log}
}

// Record adds an undo action. For Reset the current value of the ref is
// captured now, so Record must be called before the ref is changed.
func (j *Journal) Record(_ context.Context, ref string, typ RefType, action Action) error {
	entry := Entry{Ref: ref, Type: typ, Action: action}
	if action == Reset {
		value, ok, err := j.repo.RefValue(entry.FullRef())
		if err != nil {
			return fmt.Errorf("failed to record %s %s: %w", typ, ref, err)
		}
		if ok {
			entry.Saved = value
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

// RecordBranch records how to undo a change to branch: reset when it
// exists, delete when it is about to be created
func (j *Journal) RecordBranch(ctx context.Context, branch string) error {
	_, ok, err := j.repo.RefValue(git.BranchRef(branch))
	if err != nil {
		return err
	}
	if ok {
		return j.Record(ctx, branch, Branch, Reset)
	}
	return j.Record(ctx, branch, Branch, Delete)
}

// Entries returns a copy of the recorded entries in insertion order
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Len returns the number of recorded entries
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Discard forgets every entry. Called once the command succeeded.
func (j *Journal) Discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// Rollback applies every entry in insertion order. It keeps going after a
// failure and returns a *errors.RollbackError listing all failures. The
// journal is empty afterwards.
func (j *Journal) Rollback(ctx context.Context) error {
	j.mu.Lock()
	entries := j.entries
	j.entries = nil
	j.mu.Unlock()

	var failures []gbperrors.RollbackFailure
	for _, e := range entries {
		j.log.Debug("Rolling back %s '%s' (%s)", e.Type, e.Ref, e.Action)
		if err := j.undo(ctx, e); err != nil {
			j.log.Debug("Rollback of %s '%s' failed: %v", e.Type, e.Ref, err)
			failures = append(failures, gbperrors.RollbackFailure{
				Ref:    e.Ref,
				Type:   string(e.Type),
				Action: string(e.Action),
				Saved:  e.Saved,
				Err:    err,
			})
		}
	}
	if len(failures) > 0 {
		return &gbperrors.RollbackError{Failures: failures}
	}
	return nil
}

func (j *Journal) undo(ctx context.Context, e Entry) error {
	switch e.Action {
	case AbortMerge:
		if !j.repo.IsInMerge(ctx) {
			return nil
		}
		return j.repo.AbortMerge(ctx)
	case Reset:
		if e.Saved == "" {
			return j.deleteIfPresent(ctx, e)
		}
		return j.repo.UpdateRef(ctx, e.FullRef(), e.Saved, "", "gbp: rollback")
	case Delete:
		return j.deleteIfPresent(ctx, e)
	default:
		return fmt.Errorf("unknown rollback action %q", e.Action)
	}
}

func (j *Journal) deleteIfPresent(ctx context.Context, e Entry) error {
	_, ok, err := j.repo.RefValue(e.FullRef())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return j.repo.DeleteRef(ctx, e.FullRef())
}
