package testhelpers

import (
	"os"
	"testing"

	"github.com/agx/git-buildpackage-sub001/internal/output"
)

// Identity used for every commit made by tests
const (
	TestUserName  = "Test User"
	TestUserEmail = "test@example.com"
)

// Scene represents a test scene with a temporary directory and Git repository.
type Scene struct {
	Dir  string
	Repo *GitRepo
	Log  *output.Recorder
}

// SceneSetup is a function type for setting up a scene.
type SceneSetup func(*Scene) error

// IsolateGit points git at an empty global config and a fixed identity for
// the rest of the test, so commits made by the code under test do not depend
// on the machine running it.
func IsolateGit(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", TestUserName)
	t.Setenv("GIT_AUTHOR_EMAIL", TestUserEmail)
	t.Setenv("GIT_COMMITTER_NAME", TestUserName)
	t.Setenv("GIT_COMMITTER_EMAIL", TestUserEmail)
	t.Setenv("GBP_CONF_FILES", os.DevNull)
	t.Setenv("NO_COLOR", "1")
}

// NewScene creates a new test scene with a temporary directory and Git
// repository on branch main, and changes into it. Cleanup is automatic.
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()
	IsolateGit(t)

	tmpDir := t.TempDir()
	repo, err := NewGitRepo(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create Git repo: %v", err)
	}

	scene := &Scene{
		Dir:  tmpDir,
		Repo: repo,
		Log:  output.NewRecorder(),
	}
	t.Chdir(tmpDir)

	if setup != nil {
		if err := setup(scene); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}
	return scene
}

// BasicSceneSetup is a setup function that creates a basic scene with a single commit.
func BasicSceneSetup(scene *Scene) error {
	return scene.Repo.CreateChangeAndCommit("1", "1")
}
