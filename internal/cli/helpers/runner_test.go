package helpers_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/agx/git-buildpackage-sub001/internal/cli/helpers"
	"github.com/agx/git-buildpackage-sub001/internal/runtime"
	"github.com/agx/git-buildpackage-sub001/testhelpers"
)

func TestCommandName(t *testing.T) {
	root := &cobra.Command{Use: "gbp"}
	pq := &cobra.Command{Use: "pq"}
	export := &cobra.Command{Use: "export"}
	root.AddCommand(pq)
	pq.AddCommand(export)

	require.Equal(t, "pq", helpers.CommandName(export))
	require.Equal(t, "pq", helpers.CommandName(pq))
	require.Equal(t, "gbp", helpers.CommandName(root))
}

func TestRun(t *testing.T) {
	testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	newCmd := func(fn func(ctx *runtime.Context) error) (*cobra.Command, *bytes.Buffer) {
		var out bytes.Buffer
		cmd := &cobra.Command{
			Use:           "drop",
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return helpers.Run(cmd, fn)
			},
		}
		helpers.AddCommonFlags(cmd, cmd.Flags())
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--debian-branch", "unstable"})
		return cmd, &out
	}

	t.Run("provides repository and values", func(t *testing.T) {
		cmd, _ := newCmd(func(ctx *runtime.Context) error {
			repo, err := ctx.RequireRepo()
			require.NoError(t, err)
			require.True(t, repo.HasBranch(ctx, "main"))
			require.Equal(t, "unstable", ctx.Values["debian-branch"])
			return nil
		})
		require.NoError(t, cmd.Execute())
	})

	t.Run("logs and marks errors", func(t *testing.T) {
		cause := errors.New("boom")
		cmd, out := newCmd(func(*runtime.Context) error { return cause })

		err := cmd.Execute()
		require.ErrorIs(t, err, cause)
		require.ErrorIs(t, err, helpers.ErrReported)
		require.Equal(t, "gbp:error: boom\n", out.String())
	})
}
