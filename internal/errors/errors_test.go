package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

func TestRepoError(t *testing.T) {
	t.Run("unwraps to the git command error", func(t *testing.T) {
		cmdErr := gbperrors.NewGitCommandError("git", []string{"tag", "v1"}, "", "fatal: tag exists", errors.New("exit status 128"))
		err := fmt.Errorf("import: %w", gbperrors.NewRepoError("create tag v1", cmdErr))

		var repoErr *gbperrors.RepoError
		require.ErrorAs(t, err, &repoErr)
		require.Equal(t, "create tag v1", repoErr.Op)

		var gitErr *gbperrors.GitCommandError
		require.ErrorAs(t, err, &gitErr)
		require.Contains(t, err.Error(), "fatal: tag exists")
	})
}

func TestGbpError(t *testing.T) {
	t.Run("puts the high level message first", func(t *testing.T) {
		err := gbperrors.WrapGbpError(errors.New("boom"), "Cannot create patch-queue branch '%s'. Try 'rebase' instead.", "patch-queue/master")
		require.Equal(t, "Cannot create patch-queue branch 'patch-queue/master'. Try 'rebase' instead.: boom", err.Error())
		require.Equal(t, "Cannot create patch-queue branch 'patch-queue/master'. Try 'rebase' instead.", err.Msg)
	})

	t.Run("without cause", func(t *testing.T) {
		require.Equal(t, "nothing", gbperrors.NewGbpError("nothing").Error())
	})
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("ref locked")
	err := &gbperrors.RollbackError{Failures: []gbperrors.RollbackFailure{
		{Ref: "master", Type: "branch", Action: "reset", Saved: "abc123", Err: cause},
		{Ref: "debian/1.0-1", Type: "tag", Action: "delete", Err: errors.New("no such tag")},
	}}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "automatic rollback failed")
	require.Contains(t, err.Error(), `reset branch "master" (saved abc123): ref locked`)
	require.Contains(t, err.Error(), `delete tag "debian/1.0-1" (saved none)`)
}

func TestBranchNotFoundError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", gbperrors.NewBranchNotFoundError("upstream"))
	require.ErrorIs(t, err, gbperrors.ErrBranchNotFound)
}

func TestGbpErrorKind(t *testing.T) {
	err := fmt.Errorf("import: %w", gbperrors.NewGbpErrorKind(gbperrors.ErrOnPatchQueue, "can't drop the queue you're on"))
	require.ErrorIs(t, err, gbperrors.ErrOnPatchQueue)
	require.NotErrorIs(t, err, gbperrors.ErrQueueExists)
	require.Equal(t, "import: can't drop the queue you're on", err.Error())
}
