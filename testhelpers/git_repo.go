package testhelpers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitRepo represents a Git repository for testing purposes.
type GitRepo struct {
	Dir string
}

// NewGitRepo initializes a new Git repository in the specified directory
// with main as its initial branch.
func NewGitRepo(dir string) (*GitRepo, error) {
	repo := &GitRepo{Dir: dir}

	// Use git -c flags to avoid reading global config and set local configs
	cmd := exec.Command("git", "-c", "init.defaultBranch=main", "-c", "core.autocrlf=false", "init", "-q", dir, "-b", "main")
	cmd.Env = append(os.Environ(), "GIT_CONFIG_GLOBAL=/dev/null")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("failed to init repo: %w: %s", err, out)
	}
	return repo, repo.configureIdentity()
}

// OpenGitRepo wraps an existing repository, e.g. one created by the code
// under test.
func OpenGitRepo(dir string) *GitRepo {
	return &GitRepo{Dir: dir}
}

// configureIdentity sets the user required for commits
func (r *GitRepo) configureIdentity() error {
	if err := r.runGitCommand("config", "user.name", TestUserName); err != nil {
		return err
	}
	return r.runGitCommand("config", "user.email", TestUserEmail)
}

// runGitCommand executes a git command in the repository directory.
// Uses GIT_CONFIG_GLOBAL=/dev/null to avoid reading global config.
func (r *GitRepo) runGitCommand(args ...string) error {
	_, err := r.runGitCommandAndGetOutput(args...)
	return err
}

// RunGitCommand executes a git command and returns an error if it fails.
func (r *GitRepo) RunGitCommand(args ...string) error {
	return r.runGitCommand(args...)
}

// runGitCommandAndGetOutput executes a git command and returns its trimmed output.
func (r *GitRepo) runGitCommandAndGetOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_GLOBAL=/dev/null")
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(string(output)), nil
}

// RunGitCommandAndGetOutput executes a git command and returns its output.
func (r *GitRepo) RunGitCommandAndGetOutput(args ...string) (string, error) {
	return r.runGitCommandAndGetOutput(args...)
}

// WriteFile writes content to a path relative to the work tree, creating
// parent directories.
func (r *GitRepo) WriteFile(name, content string) error {
	path := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ReadFile returns the content of a work tree file
func (r *GitRepo) ReadFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, name))
	return string(data), err
}

// CommitFiles writes files and commits them with message.
func (r *GitRepo) CommitFiles(message string, files map[string]string) error {
	for name, content := range files {
		if err := r.WriteFile(name, content); err != nil {
			return err
		}
	}
	if err := r.runGitCommand("add", "-A", "."); err != nil {
		return err
	}
	return r.runGitCommand("commit", "-q", "--allow-empty", "-m", message)
}

// CreateChangeAndCommit writes <prefix>_test.txt and commits it.
func (r *GitRepo) CreateChangeAndCommit(textValue string, prefix string) error {
	return r.CommitFiles(textValue, map[string]string{prefix + "_test.txt": textValue})
}

// CreateBranch creates a new branch without checking it out.
func (r *GitRepo) CreateBranch(name string) error {
	return r.runGitCommand("branch", name)
}

// CreateAndCheckoutBranch creates and checks out a new branch.
func (r *GitRepo) CreateAndCheckoutBranch(name string) error {
	return r.runGitCommand("checkout", "-q", "-b", name)
}

// CheckoutBranch checks out a branch.
func (r *GitRepo) CheckoutBranch(name string) error {
	return r.runGitCommand("checkout", "-q", name)
}

// CurrentBranchName returns the name of the current branch.
func (r *GitRepo) CurrentBranchName() (string, error) {
	return r.runGitCommandAndGetOutput("branch", "--show-current")
}

// GetRevision returns the SHA of a revision (branch, tag, or commit reference).
func (r *GitRepo) GetRevision(rev string) (string, error) {
	return r.runGitCommandAndGetOutput("rev-parse", "--verify", "--quiet", rev)
}

// HasRef reports whether a full reference exists
func (r *GitRepo) HasRef(ref string) bool {
	return r.runGitCommand("show-ref", "--verify", "--quiet", ref) == nil
}

// Parents returns the parent commits of rev in order
func (r *GitRepo) Parents(rev string) ([]string, error) {
	out, err := r.runGitCommandAndGetOutput("rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no commit %s", rev)
	}
	return fields[1:], nil
}

// Subjects returns the commit subjects reachable from rev, newest first
func (r *GitRepo) Subjects(rev string) ([]string, error) {
	out, err := r.runGitCommandAndGetOutput("log", "--format=%s", rev)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ShowFile returns the content of path at rev
func (r *GitRepo) ShowFile(rev, path string) (string, error) {
	cmd := exec.Command("git", "show", rev+":"+path)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_GLOBAL=/dev/null")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git show %s:%s failed: %w", rev, path, err)
	}
	return string(out), nil
}

// TreeOf returns the tree object id of rev
func (r *GitRepo) TreeOf(rev string) (string, error) {
	return r.runGitCommandAndGetOutput("rev-parse", rev+"^{tree}")
}

// Refs returns every reference with the object it points to
func (r *GitRepo) Refs() (map[string]string, error) {
	out, err := r.runGitCommandAndGetOutput("for-each-ref", "--format=%(refname) %(objectname)")
	if err != nil {
		return nil, err
	}
	refs := map[string]string{}
	for _, line := range splitLines(out) {
		name, sha, ok := strings.Cut(line, " ")
		if ok {
			refs[name] = sha
		}
	}
	return refs, nil
}

// splitLines splits a string by newlines and returns non-empty lines.
func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
