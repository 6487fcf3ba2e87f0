package patch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/agx/git-buildpackage-sub001/internal/patch"
)

const formatPatch = `From 3b1f1e0c4ad5e6d1b1d1c1e1f1a1b1c1d1e1f1a1 Mon Sep 17 00:00:00 2001
From: Jane Doe <jane@example.com>
Date: Tue, 3 Oct 2023 10:00:00 +0200
Subject: [PATCH 2/3] Fix the frobnicator
 on big endian machines

The frobnicator assumed little endian.

Closes: #1234
---
 src/frob.c | 2 +-
 1 file changed, 1 insertion(+), 1 deletion(-)

diff --git a/src/frob.c b/src/frob.c
index 1111111..2222222 100644
--- a/src/frob.c
+++ b/src/frob.c
@@ -1 +1 @@
-old
+new
`

const dep3Patch = `Description: Use the system zlib
 Upstream bundles an outdated copy.
 .
 This drops it.
Author: John Roe <john@example.org>
Forwarded: no
---
--- a/Makefile
+++ b/Makefile
@@ -1 +1 @@
-old
+new
`

func writePatch(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadInfo(t *testing.T) {
	t.Run("parses git format-patch headers", func(t *testing.T) {
		p := patch.New(writePatch(t, "0002-Fix-the-frobnicator.patch", formatPatch))
		require.NoError(t, p.ReadInfo())

		require.Equal(t, "Jane Doe", p.Author)
		require.Equal(t, "jane@example.com", p.Email)
		require.Equal(t, "Tue, 3 Oct 2023 10:00:00 +0200", p.Date)
		require.Equal(t, "Fix the frobnicator on big endian machines", p.Subject)
		require.Equal(t, "The frobnicator assumed little endian.\n\nCloses: #1234\n", p.LongDesc)
	})

	t.Run("decodes encoded subjects and authors", func(t *testing.T) {
		content := "From: =?UTF-8?q?Ren=C3=A9?= <rene@example.com>\n" +
			"Subject: [PATCH] =?UTF-8?q?Caf=C3=A9?= support\n\n---\n"
		p := patch.New(writePatch(t, "cafe.patch", content))
		require.NoError(t, p.ReadInfo())

		require.Equal(t, "René", p.Author)
		require.Equal(t, "Café support", p.Subject)
	})

	t.Run("parses DEP-3 headers", func(t *testing.T) {
		p := patch.New(writePatch(t, "system-zlib.patch", dep3Patch))
		require.NoError(t, p.ReadInfo())

		require.Equal(t, "John Roe", p.Author)
		require.Equal(t, "john@example.org", p.Email)
		require.Equal(t, "Use the system zlib", p.Subject)
		require.Equal(t, "Upstream bundles an outdated copy.\n\nThis drops it.\n", p.LongDesc)
	})

	t.Run("falls back to the file name for the subject", func(t *testing.T) {
		p := patch.New(writePatch(t, "0007-no-header.diff", "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n"))
		require.NoError(t, p.ReadInfo())

		require.Equal(t, "no-header", p.Subject)
		require.Empty(t, p.Author)
		require.Empty(t, p.Email)
	})
}

func TestSubjectFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"0001-fix-bug.patch", "fix-bug"},
		{"fix-bug.diff", "fix-bug"},
		{"fix-bug.txt", "fix-bug.txt"},
		{"0001-", "0001-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, patch.New("/p/"+tt.name).SubjectFromFilename())
		})
	}
}

func TestReadSeries(t *testing.T) {
	t.Run("skips comments and keeps order, topics and strip levels", func(t *testing.T) {
		series := "# leading comment\n" +
			"first.patch\n" +
			"\n" +
			"upstream/second.patch -p0\n" +
			"third.patch # trailing comment\n"
		s, err := patch.ReadSeries(strings.NewReader(series), "/src/debian/patches")
		require.NoError(t, err)

		require.Equal(t, []string{"first.patch", "upstream/second.patch", "third.patch"}, s.Names())
		require.Equal(t, "", s[0].Topic)
		require.Equal(t, patch.DefaultStrip, s[0].Strip)
		require.Equal(t, "upstream", s[1].Topic)
		require.Equal(t, 0, s[1].Strip)
		require.Equal(t, filepath.Join("/src/debian/patches", "upstream", "second.patch"), s[1].Path)
	})

	t.Run("treats a missing series file as empty", func(t *testing.T) {
		s, err := patch.ReadSeriesFile(filepath.Join(t.TempDir(), "series"))
		require.NoError(t, err)
		require.Empty(t, s)
	})

	t.Run("round trips through the series file", func(t *testing.T) {
		dir := t.TempDir()
		names := []string{"a.patch", "topic/b.patch"}
		require.NoError(t, patch.WriteSeriesFile(dir, names, nil))

		s, err := patch.ReadSeriesFile(filepath.Join(dir, patch.SeriesFile))
		require.NoError(t, err)
		require.Equal(t, names, s.Names())
	})
}

func TestSeriesComments(t *testing.T) {
	series := "# applied first\n" +
		"#   keep the spacing\n" +
		"first.patch\n" +
		"# about the dropped one\n" +
		"dropped.patch -p0\n" +
		"last.patch\n" +
		"# the end\n"
	comments, err := patch.ReadSeriesComments(strings.NewReader(series))
	require.NoError(t, err)
	want := []patch.SeriesComment{
		{Before: "first.patch", Lines: []string{"# applied first", "#   keep the spacing"}},
		{Before: "dropped.patch", Lines: []string{"# about the dropped one"}},
		{Lines: []string{"# the end"}},
	}
	if diff := cmp.Diff(want, comments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}

	var b strings.Builder
	require.NoError(t, patch.WriteSeries(&b, []string{"first.patch", "new.patch", "last.patch"}, comments))
	require.Equal(t, "# applied first\n"+
		"#   keep the spacing\n"+
		"first.patch\n"+
		"new.patch\n"+
		"last.patch\n"+
		"# about the dropped one\n"+
		"# the end\n", b.String())
}

func TestCompareSeries(t *testing.T) {
	added, removed := patch.CompareSeries(
		[]string{"old.patch", "keep.patch"},
		[]string{"keep.patch", "fix-bug.patch", "another.patch"},
	)
	if diff := cmp.Diff([]string{"fix-bug.patch", "another.patch"}, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"old.patch"}, removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
}
