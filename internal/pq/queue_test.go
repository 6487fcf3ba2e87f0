package pq_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/output"
	"github.com/agx/git-buildpackage-sub001/internal/pq"
	"github.com/agx/git-buildpackage-sub001/testhelpers"
)

const control = "Source: foo\nMaintainer: Jane Doe <jane@example.com>\n\nPackage: foo\nArchitecture: any\n"

func gitDiff(file, old, updated string) string {
	return fmt.Sprintf("diff --git a/%[1]s b/%[1]s\n--- a/%[1]s\n+++ b/%[1]s\n@@ -1 +1 @@\n-%[2]s\n+%[3]s\n", file, old, updated)
}

func mailPatch(from, date, subject, body, diff string) string {
	return fmt.Sprintf("From 0123456789abcdef0123456789abcdef01234567 Mon Sep 17 00:00:00 2001\nFrom: %s\nDate: %s\nSubject: [PATCH] %s\n\n%s---\n%s", from, date, subject, body, diff)
}

// packagingFiles is an unpacked source tree with packaging
func packagingFiles() map[string]string {
	return map[string]string{
		"src/a.txt":      "one\n",
		"src/b.txt":      "two\n",
		"src/c.txt":      "three\n",
		"debian/control": control,
		"debian/changelog": "foo (1.0-1) unstable; urgency=medium\n\n  * Initial release.\n\n" +
			" -- Jane Doe <jane@example.com>  Tue, 03 Oct 2023 10:00:00 +0200\n",
	}
}

// seriesFiles is a quilt series of three patches, one in a topic and one
// without authorship
func seriesFiles() map[string]string {
	return map[string]string{
		"debian/patches/series": "a.patch\nb.patch -p1\n# not a patch\ntopic/c.patch\n",
		"debian/patches/a.patch": mailPatch("Alice Author <alice@example.com>", "Mon, 2 Oct 2023 12:00:00 +0000",
			"Change a", "Make a shout.\n", gitDiff("src/a.txt", "one", "ONE")),
		"debian/patches/b.patch": "Description: Change b\n Make b louder.\n--- a/src/b.txt\n+++ b/src/b.txt\n@@ -1 +1 @@\n-two\n+TWO\n",
		"debian/patches/topic/c.patch": mailPatch("Carol Coder <carol@example.com>", "Tue, 3 Oct 2023 08:00:00 +0000",
			"Change c", "", gitDiff("src/c.txt", "three", "THREE")),
	}
}

func merged(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

type fixture struct {
	scene *testhelpers.Scene
	repo  *git.Repository
	opts  config.PQ
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	scene := testhelpers.NewScene(t, func(s *testhelpers.Scene) error {
		return s.Repo.CommitFiles("Initial packaging", files)
	})
	repo, err := git.Open(context.Background(), scene.Dir)
	require.NoError(t, err)
	opts, err := config.NewPQ(config.Values{})
	require.NoError(t, err)
	return &fixture{scene: scene, repo: repo, opts: opts}
}

func (f *fixture) queue() *pq.Queue {
	return pq.New(f.repo, f.scene.Log, f.opts)
}

func (f *fixture) currentBranch(t *testing.T) string {
	t.Helper()
	branch, err := f.scene.Repo.CurrentBranchName()
	require.NoError(t, err)
	return branch
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the series in order with authorship", func(t *testing.T) {
		f := newFixture(t, merged(packagingFiles(), seriesFiles()))
		base := testhelpers.Must(f.scene.Repo.GetRevision("main"))

		require.NoError(t, f.queue().Import(ctx))

		require.Equal(t, "patch-queue/main", f.currentBranch(t))
		testhelpers.ExpectBranches(t, f.scene.Repo, []string{"main", "patch-queue/main"})
		testhelpers.ExpectCommits(t, f.scene.Repo, "patch-queue/main", []string{"Change c", "Change b", "Change a", "Initial packaging"})
		require.Equal(t, base, testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main~3")))

		a, err := f.repo.CommitInfo(ctx, "patch-queue/main~2")
		require.NoError(t, err)
		require.Equal(t, "Alice Author", a.Author.Name)
		require.Equal(t, "alice@example.com", a.Author.Email)
		require.Equal(t, int64(1696248000), a.When.Unix())
		require.Contains(t, a.Body, "Make a shout.")
		require.Contains(t, a.Body, "Gbp-Pq: Name a.patch")

		b, err := f.repo.CommitInfo(ctx, "patch-queue/main~1")
		require.NoError(t, err)
		require.Equal(t, "Jane Doe", b.Author.Name)
		require.Equal(t, "jane@example.com", b.Author.Email)
		require.True(t, f.scene.Log.Contains(output.LevelWarn,
			"Patch 'b.patch' has no authorship information, using 'Jane Doe <jane@example.com>'"))

		c, err := f.repo.CommitInfo(ctx, "patch-queue/main")
		require.NoError(t, err)
		require.Equal(t, "Carol Coder", c.Author.Name)
		require.Contains(t, c.Body, "Gbp-Pq: Topic topic")
		require.Contains(t, c.Body, "Gbp-Pq: Name c.patch")

		content, err := f.scene.Repo.ReadFile("src/c.txt")
		require.NoError(t, err)
		require.Equal(t, "THREE\n", content)
	})

	t.Run("refuses an existing queue", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateBranch("patch-queue/main"))

		err := f.queue().Import(ctx)
		require.ErrorIs(t, err, gbperrors.ErrQueueExists)
		require.EqualError(t, err, "Patch queue branch 'patch-queue/main'. already exists. Try 'rebase' or 'switch' instead.")
		require.Equal(t, "main", f.currentBranch(t))
	})

	t.Run("force replaces an existing queue", func(t *testing.T) {
		f := newFixture(t, merged(packagingFiles(), seriesFiles()))
		require.NoError(t, f.scene.Repo.CreateBranch("patch-queue/main"))
		f.opts.Force = true

		require.NoError(t, f.queue().Import(ctx))
		testhelpers.ExpectCommits(t, f.scene.Repo, "patch-queue/main", []string{"Change c", "Change b", "Change a"})
	})

	t.Run("does nothing on a queue branch", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateAndCheckoutBranch("patch-queue/main"))
		before := testhelpers.Must(f.scene.Repo.Refs())

		require.NoError(t, f.queue().Import(ctx))
		require.True(t, f.scene.Log.Contains(output.LevelInfo, "Already on a patch-queue branch 'patch-queue/main' - doing nothing."))
		require.Equal(t, before, testhelpers.Must(f.scene.Repo.Refs()))
	})

	t.Run("missing series gives an empty queue", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.queue().Import(ctx))
		require.Equal(t, testhelpers.Must(f.scene.Repo.GetRevision("main")), testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main")))
	})

	t.Run("time machine walks back until the series applies", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		first := testhelpers.Must(f.scene.Repo.GetRevision("main"))
		require.NoError(t, f.scene.Repo.CommitFiles("Change upstream", merged(seriesFiles(), map[string]string{"src/a.txt": "uno\n"})))

		f.opts.TimeMachine = 2
		require.NoError(t, f.queue().Import(ctx))

		require.Equal(t, first, testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main~3")))
		require.True(t, f.scene.Log.Contains(output.LevelError, "Failed to apply"))
		require.True(t, f.scene.Log.Contains(output.LevelWarn, "retrying with whitespace fixup"))
	})

	t.Run("gives up when every try fails", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CommitFiles("Change upstream", merged(seriesFiles(), map[string]string{"src/a.txt": "uno\n"})))
		before := testhelpers.Must(f.scene.Repo.Refs())

		err := f.queue().Import(ctx)
		var importErr *gbperrors.PatchImportError
		require.ErrorAs(t, err, &importErr)
		require.Equal(t, "patch-queue/main", importErr.Branch)
		require.Equal(t, 1, importErr.Tries)

		require.Equal(t, "main", f.currentBranch(t))
		require.Equal(t, before, testhelpers.Must(f.scene.Repo.Refs()))
		clean, err := f.repo.IsClean(ctx)
		require.NoError(t, err)
		require.True(t, clean)
	})

	t.Run("pq-from TAG starts at the upstream tag", func(t *testing.T) {
		f := newFixture(t, map[string]string{"src/a.txt": "one\n", "src/b.txt": "two\n", "src/c.txt": "three\n"})
		upstream := testhelpers.Must(f.scene.Repo.GetRevision("main"))
		require.NoError(t, f.scene.Repo.RunGitCommand("tag", "upstream/1.0"))
		require.NoError(t, f.scene.Repo.CommitFiles("Add packaging", merged(packagingFiles(), seriesFiles())))

		f.opts.PQFrom = config.PQFromTag
		require.NoError(t, f.queue().Import(ctx))
		require.Equal(t, upstream, testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main~3")))
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("summarises added and dropped patches", func(t *testing.T) {
		f := newFixture(t, merged(packagingFiles(), map[string]string{
			"debian/patches/series": "old.patch\n",
			"debian/patches/old.patch": mailPatch("Alice Author <alice@example.com>", "Mon, 2 Oct 2023 12:00:00 +0000",
				"Old change", "", gitDiff("src/a.txt", "one", "ONE")),
		}))
		require.NoError(t, f.queue().Import(ctx))
		require.NoError(t, f.scene.Repo.RunGitCommand("reset", "-q", "--hard", "HEAD~1"))
		require.NoError(t, f.scene.Repo.CommitFiles("fix bug", map[string]string{"src/b.txt": "fixed\n"}))

		f.opts.Commit = true
		result, err := f.queue().Export(ctx)
		require.NoError(t, err)

		want := "Rediff patches\n\nAdd fix-bug.patch: <REASON>\nDrop old.patch: <REASON>\n"
		require.Equal(t, want, result.Message)
		require.Equal(t, []string{"fix-bug.patch"}, result.Added)
		require.Equal(t, []string{"old.patch"}, result.Removed)
		require.True(t, result.Committed)

		require.Equal(t, "main", f.currentBranch(t))
		msg, err := f.scene.Repo.RunGitCommandAndGetOutput("log", "-1", "--format=%B", "main")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(want, msg), "commit message %q", msg)

		series, err := f.scene.Repo.ShowFile("main", "debian/patches/series")
		require.NoError(t, err)
		require.Equal(t, "fix-bug.patch\n", series)
		_, err = f.scene.Repo.ShowFile("main", "debian/patches/old.patch")
		require.Error(t, err)
	})

	t.Run("single added patch gets a short message", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateAndCheckoutBranch("patch-queue/main"))
		require.NoError(t, f.scene.Repo.CommitFiles("Fix the build", map[string]string{"src/a.txt": "built\n"}))

		f.opts.Commit = true
		f.opts.Drop = true
		result, err := f.queue().Export(ctx)
		require.NoError(t, err)
		require.Equal(t, "Add Fix-the-build.patch", result.Message)
		require.True(t, result.Dropped)
		testhelpers.ExpectBranches(t, f.scene.Repo, []string{"main"})
		testhelpers.ExpectCommits(t, f.scene.Repo, "main", []string{"Add Fix-the-build.patch"})

		content, err := f.scene.Repo.ShowFile("main", "debian/patches/Fix-the-build.patch")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(content, "From: Test User <test@example.com>\nDate: "))
		require.Contains(t, content, "\nSubject: Fix the build\n\n---\n")
		require.Contains(t, content, "+built\n")
	})

	t.Run("honours gbp commands", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateAndCheckoutBranch("patch-queue/main"))
		require.NoError(t, f.scene.Repo.CommitFiles("Local hack\n\nGbp: Ignore", map[string]string{"src/a.txt": "hack\n"}))
		require.NoError(t, f.scene.Repo.CommitFiles("Topic change\n\nExplained.\n\nGbp-Pq: Topic feature\nGbp: name custom.diff", map[string]string{"src/b.txt": "b2\n"}))
		require.NoError(t, f.scene.Repo.CommitFiles("Old topic\n\ngbp-pq-topic: legacy", map[string]string{"src/c.txt": "c2\n"}))
		require.NoError(t, f.scene.Repo.CommitFiles("Numbered change", map[string]string{"src/c.txt": "c3\n"}))

		f.opts.PatchNumbers = true
		result, err := f.queue().Export(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"feature/custom.diff", "legacy/0002-Old-topic.patch", "0003-Numbered-change.patch"}, result.Patches)
		require.False(t, result.Committed)
		require.True(t, f.scene.Log.Contains(output.LevelInfo, "Ignoring commit"))
		require.True(t, f.scene.Log.Contains(output.LevelWarn, "Deprecated 'gbp-pq-topic: <topic>'"))

		custom, err := f.scene.Repo.ReadFile("debian/patches/feature/custom.diff")
		require.NoError(t, err)
		require.Contains(t, custom, "\n\nExplained.\n---\n")
		require.NotContains(t, custom, "Gbp")

		series, err := f.scene.Repo.ReadFile("debian/patches/series")
		require.NoError(t, err)
		require.Equal(t, "feature/custom.diff\nlegacy/0002-Old-topic.patch\n0003-Numbered-change.patch\n", series)
	})

	t.Run("keeps series comments", func(t *testing.T) {
		f := newFixture(t, merged(packagingFiles(), seriesFiles()))
		require.NoError(t, f.queue().Import(ctx))

		result, err := f.queue().Export(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"a.patch", "b.patch", "topic/c.patch"}, result.Patches)
		require.Empty(t, result.Added)
		require.Empty(t, result.Removed)

		series, err := f.scene.Repo.ReadFile("debian/patches/series")
		require.NoError(t, err)
		require.Equal(t, "a.patch\nb.patch\n# not a patch\ntopic/c.patch\n", series)
	})

	t.Run("round trip reproduces the queue", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateAndCheckoutBranch("patch-queue/main"))
		require.NoError(t, f.scene.Repo.CommitFiles("Change a", map[string]string{"src/a.txt": "alpha\n"}))
		require.NoError(t, f.scene.Repo.CommitFiles("Add new file\n\nSome text\n\nGbp-Pq: Topic feature", map[string]string{"src/new.txt": "new\n"}))
		require.NoError(t, f.scene.Repo.CommitFiles("Change b and c", map[string]string{"src/b.txt": "beta\n", "src/c.txt": "gamma\n"}))
		original := testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main"))

		f.opts.Commit = true
		f.opts.Drop = true
		result, err := f.queue().Export(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"Change-a.patch", "feature/Add-new-file.patch", "Change-b-and-c.patch"}, result.Patches)

		f.opts.Commit, f.opts.Drop = false, false
		require.NoError(t, f.queue().Import(ctx))
		testhelpers.ExpectCommits(t, f.scene.Repo, "patch-queue/main", []string{"Change b and c", "Add new file", "Change a"})
		require.NoError(t, f.scene.Repo.RunGitCommand("diff", "--exit-code", original, "patch-queue/main", "--", ".", ":(exclude)debian/patches"))

		info, err := f.repo.CommitInfo(ctx, "patch-queue/main~1")
		require.NoError(t, err)
		require.Contains(t, info.Body, "Some text")
		require.Contains(t, info.Body, "Gbp-Pq: Topic feature")

		// exporting again keeps the file names and changes nothing
		result, err = f.queue().Export(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"Change-a.patch", "feature/Add-new-file.patch", "Change-b-and-c.patch"}, result.Patches)
		require.Empty(t, result.Added)
		require.Empty(t, result.Removed)
	})

	t.Run("fails without a queue", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		_, err := f.queue().Export(ctx)
		require.ErrorContains(t, err, "No patch queue branch 'patch-queue/main' found")
	})
}

func TestDrop(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses to drop the queue you're on", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateAndCheckoutBranch("patch-queue/main"))
		before := testhelpers.Must(f.scene.Repo.Refs())

		err := f.queue().Drop(ctx)
		require.ErrorIs(t, err, gbperrors.ErrOnPatchQueue)
		require.ErrorContains(t, err, "can't drop the queue you're on")
		require.Equal(t, before, testhelpers.Must(f.scene.Repo.Refs()))
		require.Equal(t, "patch-queue/main", f.currentBranch(t))
	})

	t.Run("deletes the queue", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.scene.Repo.CreateBranch("patch-queue/main"))
		require.NoError(t, f.queue().Drop(ctx))
		testhelpers.ExpectBranches(t, f.scene.Repo, []string{"main"})
	})

	t.Run("no queue is a no-op", func(t *testing.T) {
		f := newFixture(t, packagingFiles())
		require.NoError(t, f.queue().Drop(ctx))
		require.True(t, f.scene.Log.Contains(output.LevelInfo, "No patch queue branch found - doing nothing."))
	})
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, merged(packagingFiles(), seriesFiles()))

	require.NoError(t, f.queue().Switch(ctx))
	require.Equal(t, "patch-queue/main", f.currentBranch(t))
	testhelpers.ExpectCommits(t, f.scene.Repo, "patch-queue/main", []string{"Change c", "Change b", "Change a"})

	require.NoError(t, f.queue().Switch(ctx))
	require.Equal(t, "main", f.currentBranch(t))

	require.NoError(t, f.queue().Switch(ctx))
	require.Equal(t, "patch-queue/main", f.currentBranch(t))
}

func TestRebase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, merged(packagingFiles(), seriesFiles()))
	require.NoError(t, f.queue().Import(ctx))
	require.NoError(t, f.scene.Repo.CheckoutBranch("main"))
	require.NoError(t, f.scene.Repo.CommitFiles("Packaging update", map[string]string{"debian/rules": "#!/usr/bin/make -f\n"}))

	state, err := pq.QueueState(ctx, f.repo, "main")
	require.NoError(t, err)
	require.Equal(t, pq.QueueDiverged, state)

	result, err := f.queue().Rebase(ctx)
	require.NoError(t, err)
	require.Equal(t, git.RebaseDone, result)
	require.Equal(t, "patch-queue/main", f.currentBranch(t))
	require.Equal(t, testhelpers.Must(f.scene.Repo.GetRevision("main")), testhelpers.Must(f.scene.Repo.GetRevision("patch-queue/main~3")))

	state, err = pq.QueueState(ctx, f.repo, "main")
	require.NoError(t, err)
	require.Equal(t, pq.QueueSynced, state)
}

func TestQueueState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, packagingFiles())

	state, err := pq.QueueState(ctx, f.repo, "main")
	require.NoError(t, err)
	require.Equal(t, pq.NoQueue, state)

	require.NoError(t, f.queue().Import(ctx))
	state, err = pq.QueueState(ctx, f.repo, "main")
	require.NoError(t, err)
	require.Equal(t, pq.QueueSynced, state)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, packagingFiles())
	patchFile := filepath.Join(t.TempDir(), "0001-extra.patch")
	require.NoError(t, os.WriteFile(patchFile, []byte("--- a/src/a.txt\n+++ b/src/a.txt\n@@ -1 +1 @@\n-one\n+extra\n"), 0600))

	require.NoError(t, f.queue().Apply(ctx, patchFile, "upstream"))

	require.Equal(t, "patch-queue/main", f.currentBranch(t))
	testhelpers.ExpectCommits(t, f.scene.Repo, "patch-queue/main", []string{"extra", "Initial packaging"})
	info, err := f.repo.CommitInfo(ctx, "patch-queue/main")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", info.Author.Name)
	require.Contains(t, info.Body, "Gbp-Pq: Topic upstream")
	require.NotContains(t, info.Body, "Gbp-Pq: Name")
	require.Equal(t, "extra\n\nGbp-Pq: Topic upstream",
		testhelpers.Must(f.scene.Repo.RunGitCommandAndGetOutput("log", "-1", "--format=%B", "patch-queue/main")))
	require.True(t, f.scene.Log.Contains(output.LevelInfo, "Applied 0001-extra.patch"))
}
