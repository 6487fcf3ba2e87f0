package output_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agx/git-buildpackage-sub001/internal/output"
)

func TestSplog(t *testing.T) {
	t.Run("prefixes console lines with the level", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := output.NewSplogWithOptions(output.Options{Writer: &buf})
		require.NoError(t, err)

		splog.Info("Version '%s' imported", "2.8-1")
		splog.Warn("Patch '%s' has no authorship information", "a.patch")
		splog.Error("Interrupted. Aborting.")

		require.Equal(t, "gbp:info: Version '2.8-1' imported\n"+
			"gbp:warning: Patch 'a.patch' has no authorship information\n"+
			"gbp:error: Interrupted. Aborting.\n", buf.String())
	})

	t.Run("hides debug unless verbose", func(t *testing.T) {
		t.Setenv("DEBUG", "")
		var quiet, verbose bytes.Buffer
		q, err := output.NewSplogWithOptions(output.Options{Writer: &quiet})
		require.NoError(t, err)
		v, err := output.NewSplogWithOptions(output.Options{Writer: &verbose, Verbose: true})
		require.NoError(t, err)

		q.Debug("applying %s", "a.patch")
		v.Debug("applying %s", "a.patch")

		require.Empty(t, quiet.String())
		require.Equal(t, "gbp:debug: applying a.patch\n", verbose.String())
	})

	t.Run("writes every level to the log file", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "gbp.log")
		splog, err := output.NewSplogWithOptions(output.Options{Writer: &buf, LogFile: logFile})
		require.NoError(t, err)

		splog.Debug("only in the file")
		require.NoError(t, splog.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		require.Contains(t, string(data), "only in the file")
		require.NotContains(t, buf.String(), "only in the file")
	})
}

func TestRecorder(t *testing.T) {
	rec := output.NewRecorder()
	rec.Info("Switching to '%s'", "patch-queue/master")
	rec.Warn("Deprecated 'gbp-pq-topic: <topic>'")

	require.True(t, rec.Contains(output.LevelInfo, "patch-queue/master"))
	require.True(t, rec.Contains(output.LevelWarn, "Deprecated"))
	require.False(t, rec.Contains(output.LevelError, "Deprecated"))
	require.Len(t, rec.Entries(), 2)
}
