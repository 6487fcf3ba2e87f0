package git_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/testhelpers"
)

func openScene(t *testing.T, setup testhelpers.SceneSetup) (*testhelpers.Scene, *git.Repository) {
	t.Helper()
	scene := testhelpers.NewScene(t, setup)
	repo, err := git.Open(context.Background(), scene.Dir)
	require.NoError(t, err)
	return scene, repo
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("opens the top level", func(t *testing.T) {
		scene, repo := openScene(t, testhelpers.BasicSceneSetup)
		want, err := filepath.EvalSymlinks(scene.Dir)
		require.NoError(t, err)
		require.Equal(t, want, repo.Path())
		require.Equal(t, filepath.Join(want, ".git"), repo.GitDir())
		require.False(t, repo.IsBare())
	})

	t.Run("rejects a plain directory", func(t *testing.T) {
		testhelpers.IsolateGit(t)
		dir := t.TempDir()
		t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
		_, err := git.Open(ctx, dir)
		require.ErrorIs(t, err, gbperrors.ErrNotARepository)
	})

	t.Run("rejects a subdirectory", func(t *testing.T) {
		scene, _ := openScene(t, testhelpers.BasicSceneSetup)
		sub := filepath.Join(scene.Dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0750))
		_, err := git.Open(ctx, sub)
		require.ErrorIs(t, err, gbperrors.ErrNotARepository)
	})

	t.Run("rejects a missing path", func(t *testing.T) {
		_, err := git.Open(ctx, filepath.Join(t.TempDir(), "missing"))
		require.ErrorIs(t, err, gbperrors.ErrNotARepository)
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	testhelpers.IsolateGit(t)

	t.Run("work tree", func(t *testing.T) {
		repo, err := git.Create(ctx, filepath.Join(t.TempDir(), "pkg"), false)
		require.NoError(t, err)
		require.False(t, repo.IsBare())
		empty, err := repo.IsEmpty(ctx)
		require.NoError(t, err)
		require.True(t, empty)
	})

	t.Run("bare", func(t *testing.T) {
		repo, err := git.Create(ctx, filepath.Join(t.TempDir(), "pkg.git"), true)
		require.NoError(t, err)
		require.True(t, repo.IsBare())
		require.Equal(t, repo.Path(), repo.GitDir())
		clean, err := repo.IsClean(ctx)
		require.NoError(t, err)
		require.True(t, clean)
	})
}

func TestBranches(t *testing.T) {
	ctx := context.Background()
	scene, repo := openScene(t, testhelpers.BasicSceneSetup)

	require.True(t, repo.HasBranch(ctx, "main"))
	require.False(t, repo.HasBranch(ctx, "upstream"))

	require.NoError(t, repo.CreateBranch(ctx, "upstream", "", false))
	require.Error(t, repo.CreateBranch(ctx, "upstream", "", false))
	require.NoError(t, repo.CreateBranch(ctx, "upstream", "main", true))

	branches, err := repo.Branches(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"main", "upstream"}, branches)

	tip, err := repo.BranchTip(ctx, "upstream")
	require.NoError(t, err)
	require.Equal(t, testhelpers.Must(scene.Repo.GetRevision("main")), tip)

	_, err = repo.BranchTip(ctx, "missing")
	require.ErrorIs(t, err, gbperrors.ErrBranchNotFound)

	require.NoError(t, repo.Checkout(ctx, "upstream"))
	current, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "upstream", current)
	require.Error(t, repo.DeleteBranch(ctx, "upstream"))

	require.NoError(t, repo.Checkout(ctx, tip))
	_, err = repo.CurrentBranch(ctx)
	require.ErrorIs(t, err, gbperrors.ErrNotOnBranch)

	require.NoError(t, repo.DeleteBranch(ctx, "upstream"))
	testhelpers.ExpectBranches(t, scene.Repo, []string{"main"})
}

func TestRefs(t *testing.T) {
	ctx := context.Background()
	scene, repo := openScene(t, testhelpers.BasicSceneSetup)
	first := testhelpers.Must(scene.Repo.GetRevision("main"))
	require.NoError(t, scene.Repo.CreateChangeAndCommit("2", "2"))
	second := testhelpers.Must(scene.Repo.GetRevision("main"))

	value, ok, err := repo.RefValue("refs/heads/main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second, value)

	_, ok, err = repo.RefValue("refs/heads/nope")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, repo.UpdateRef(ctx, "refs/heads/other", first, second, ""))
	require.NoError(t, repo.UpdateRef(ctx, "refs/heads/other", first, "", "test"))
	require.NoError(t, repo.UpdateRef(ctx, "refs/heads/other", second, first, "test"))
	require.Equal(t, second, testhelpers.Must(scene.Repo.GetRevision("other")))

	require.NoError(t, repo.DeleteRef(ctx, "refs/heads/other"))
	require.False(t, repo.HasBranch(ctx, "other"))

	require.Error(t, repo.UpdateRef(ctx, "refs/heads/main", first, git.MissingRef, ""))
	require.Equal(t, second, testhelpers.Must(scene.Repo.GetRevision("main")))
	require.NoError(t, repo.UpdateRef(ctx, "refs/heads/fresh", first, git.MissingRef, ""))
	require.Equal(t, first, testhelpers.Must(scene.Repo.GetRevision("fresh")))

	ancestor, err := repo.IsAncestor(ctx, first, second)
	require.NoError(t, err)
	require.True(t, ancestor)
	ancestor, err = repo.IsAncestor(ctx, second, first)
	require.NoError(t, err)
	require.False(t, ancestor)

	require.NoError(t, repo.ForceHead(ctx, first, true))
	require.Equal(t, first, testhelpers.Must(scene.Repo.GetRevision("main")))
	require.True(t, repo.HasTreeish(ctx, first))
	require.False(t, repo.HasTreeish(ctx, "does-not-exist"))
}

func TestTags(t *testing.T) {
	ctx := context.Background()
	scene, repo := openScene(t, testhelpers.BasicSceneSetup)
	head := testhelpers.Must(scene.Repo.GetRevision("main"))

	require.NoError(t, repo.CreateTag(ctx, git.TagOptions{Name: "debian/1.0-1", Message: "Debian release 1.0-1"}))
	require.NoError(t, repo.CreateTag(ctx, git.TagOptions{Name: "light", Commit: head}))
	require.Error(t, repo.CreateTag(ctx, git.TagOptions{Name: "light"}))
	require.True(t, repo.HasTag(ctx, "debian/1.0-1"))

	sha, err := repo.ResolveCommit(ctx, git.TagRef("debian/1.0-1"))
	require.NoError(t, err)
	require.Equal(t, head, sha)

	object := testhelpers.Must(scene.Repo.GetRevision("refs/tags/debian/1.0-1"))
	require.NoError(t, repo.MoveTag(ctx, "debian/1.0-1", "debian/1.0-1_1700000000"))
	require.False(t, repo.HasTag(ctx, "debian/1.0-1"))
	require.Equal(t, object, testhelpers.Must(scene.Repo.GetRevision("refs/tags/debian/1.0-1_1700000000")))

	found, ok, err := repo.FindVersion(ctx, "debian/%(version)s", "1.0-1_1700000000")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, head, found)

	_, ok, err = repo.FindVersion(ctx, "debian/%(version)s", "1.0-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.DeleteRef(ctx, git.TagRef("light")))
	testhelpers.ExpectTags(t, scene.Repo, []string{"debian/1.0-1_1700000000"})
}

func TestIsClean(t *testing.T) {
	ctx := context.Background()
	scene, repo := openScene(t, testhelpers.BasicSceneSetup)

	clean, err := repo.IsClean(ctx)
	require.NoError(t, err)
	require.True(t, clean)

	require.NoError(t, scene.Repo.WriteFile("debian/patches/new.patch", "x\n"))
	clean, err = repo.IsClean(ctx)
	require.NoError(t, err)
	require.False(t, clean)

	clean, err = repo.IsClean(ctx, "src")
	require.NoError(t, err)
	require.True(t, clean)
	clean, err = repo.IsClean(ctx, "debian/patches")
	require.NoError(t, err)
	require.False(t, clean)
}
