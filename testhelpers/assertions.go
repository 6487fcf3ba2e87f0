// Package testhelpers provides testing utilities for gbp, including a scene
// system, Git repository helpers, source package fixtures and custom
// assertions.
package testhelpers

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Must is a generic helper function that panics if err is not nil,
// otherwise returns the value. This is useful for test setup code
// where errors are not expected and should halt execution immediately.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func listRefs(t *testing.T, repo *GitRepo, prefix string) []string {
	t.Helper()
	output, err := repo.RunGitCommandAndGetOutput("for-each-ref", prefix, "--format=%(refname:short)")
	require.NoError(t, err, "Failed to list %s", prefix)

	names := []string{}
	for _, n := range splitLines(output) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// ExpectBranches asserts that the repository has exactly the expected branches.
func ExpectBranches(t *testing.T, repo *GitRepo, expected []string) {
	t.Helper()
	sorted := append([]string{}, expected...)
	sort.Strings(sorted)
	require.Equal(t, sorted, listRefs(t, repo, "refs/heads/"), "Branches do not match")
}

// ExpectTags asserts that the repository has exactly the expected tags.
func ExpectTags(t *testing.T, repo *GitRepo, expected []string) {
	t.Helper()
	sorted := append([]string{}, expected...)
	sort.Strings(sorted)
	require.Equal(t, sorted, listRefs(t, repo, "refs/tags/"), "Tags do not match")
}

// ExpectCommits asserts that the newest commit subjects on branch match
// expected.
func ExpectCommits(t *testing.T, repo *GitRepo, branch string, expected []string) {
	t.Helper()

	subjects, err := repo.Subjects(branch)
	require.NoError(t, err, "Failed to list commits")
	if len(subjects) < len(expected) {
		require.Fail(t, "Not enough commits", "Expected %d commits, got %d", len(expected), len(subjects))
		return
	}
	require.Equal(t, expected, subjects[:len(expected)], "Commits do not match")
}
