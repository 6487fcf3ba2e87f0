// Package errors provides sentinel errors and custom error types for gbp.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrNotOnBranch indicates that HEAD is not on a branch
	ErrNotOnBranch = errors.New("not on a branch")

	// ErrBranchNotFound indicates that a branch does not exist
	ErrBranchNotFound = errors.New("branch not found")

	// ErrNotARepository indicates that a path is not a git repository
	ErrNotARepository = errors.New("not a git repository")

	// ErrOnPatchQueue indicates an operation that is invalid while on a patch-queue branch
	ErrOnPatchQueue = errors.New("on a patch-queue branch")

	// ErrQueueExists indicates that a patch-queue branch already exists
	ErrQueueExists = errors.New("patch queue already exists")

	// ErrDirtyRepository indicates uncommitted changes in the working copy
	ErrDirtyRepository = errors.New("repository has uncommitted changes")

	// ErrUnsupportedFormat indicates a source format that cannot be imported
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrDirectoryExists indicates that the target directory exists but is no repository
	ErrDirectoryExists = errors.New("directory already exists")
)

// BranchNotFoundError represents an error when a branch is not found
type BranchNotFoundError struct {
	BranchName string
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %s does not exist", e.BranchName)
}

// Is returns true if the target error is ErrBranchNotFound
func (e *BranchNotFoundError) Is(target error) bool {
	return target == ErrBranchNotFound
}

// NewBranchNotFoundError creates a new BranchNotFoundError
func NewBranchNotFoundError(branchName string) *BranchNotFoundError {
	return &BranchNotFoundError{BranchName: branchName}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("%s command failed", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", strings.TrimSpace(e.Stderr))
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", strings.TrimSpace(e.Stdout))
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, err error) *GitCommandError {
	return &GitCommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// RepoError is returned by every mutating repository operation. Op names the
// operation ("create tag debian/1.0-1"), Err carries the failed command.
type RepoError struct {
	Op  string
	Err error
}

func (e *RepoError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RepoError) Unwrap() error {
	return e.Err
}

// NewRepoError creates a new RepoError
func NewRepoError(op string, err error) *RepoError {
	return &RepoError{Op: op, Err: err}
}

// GbpError is a user facing failure of a high level action. Msg is what the
// user reads first, Err is kept for diagnosis. Kind optionally classifies
// the failure with one of the sentinels above without being printed.
type GbpError struct {
	Msg  string
	Err  error
	Kind error
}

func (e *GbpError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *GbpError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel the error was classified with
func (e *GbpError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewGbpError creates a GbpError without an underlying cause
func NewGbpError(format string, args ...any) *GbpError {
	return &GbpError{Msg: fmt.Sprintf(format, args...)}
}

// NewGbpErrorKind creates a GbpError classified as kind
func NewGbpErrorKind(kind error, format string, args ...any) *GbpError {
	return &GbpError{Msg: fmt.Sprintf(format, args...), Kind: kind}
}

// WrapGbpError creates a GbpError wrapping cause
func WrapGbpError(cause error, format string, args ...any) *GbpError {
	return &GbpError{Msg: fmt.Sprintf(format, args...), Err: cause}
}

// RollbackFailure describes a single undo action that could not be applied
type RollbackFailure struct {
	Ref    string
	Type   string
	Action string
	Saved  string
	Err    error
}

func (f RollbackFailure) String() string {
	saved := f.Saved
	if saved == "" {
		saved = "none"
	}
	return fmt.Sprintf("%s %s %q (saved %s): %v", f.Action, f.Type, f.Ref, saved, f.Err)
}

// RollbackError aggregates every failure seen while rolling back
type RollbackError struct {
	Failures []RollbackFailure
}

func (e *RollbackError) Error() string {
	var b strings.Builder
	b.WriteString("automatic rollback failed")
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}

// Unwrap exposes the individual causes to errors.Is/errors.As
func (e *RollbackError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// PatchImportError is returned when a quilt series could not be applied at
// any of the tried base commits
type PatchImportError struct {
	Branch string
	Tries  int
	Err    error
}

func (e *PatchImportError) Error() string {
	return fmt.Sprintf("couldn't apply patches to '%s' (tried %d base commit(s)): %v", e.Branch, e.Tries, e.Err)
}

func (e *PatchImportError) Unwrap() error {
	return e.Err
}
