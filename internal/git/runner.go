package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// DefaultCommandTimeout is the default timeout for git commands
const DefaultCommandTimeout = 5 * time.Minute

// CommandRunner handles execution of git (and helper tool) commands
type CommandRunner struct {
	workingDir string
}

// NewCommandRunner creates a new CommandRunner
func NewCommandRunner(workingDir string) *CommandRunner {
	return &CommandRunner{workingDir: workingDir}
}

// runOptions tweaks a single invocation
type runOptions struct {
	tool  string
	dir   string
	input string
	env   []string
	trim  bool
}

// Run executes a git command with the given context and returns trimmed output
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.runInternal(ctx, runOptions{trim: true}, args...)
}

// RunRaw executes a git command and returns the raw, untrimmed output
func (r *CommandRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	return r.runInternal(ctx, runOptions{}, args...)
}

// RunWithEnv executes a git command with additional environment variables
func (r *CommandRunner) RunWithEnv(ctx context.Context, env []string, args ...string) (string, error) {
	return r.runInternal(ctx, runOptions{env: env, trim: true}, args...)
}

// RunLines executes a git command and splits its output into lines
func (r *CommandRunner) RunLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return []string{}, nil
	}
	return strings.Split(output, "\n"), nil
}

// RunTool executes a helper tool other than git (e.g. pristine-tar) in the
// runner's working directory
func (r *CommandRunner) RunTool(ctx context.Context, tool string, args ...string) (string, error) {
	return r.runInternal(ctx, runOptions{tool: tool, trim: true}, args...)
}

// runInternal is the internal implementation that handles directory, input and environment
func (r *CommandRunner) runInternal(ctx context.Context, opts runOptions, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// If no timeout/deadline is set in the context, add the default one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	tool := opts.tool
	if tool == "" {
		tool = "git"
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	switch {
	case opts.dir != "":
		cmd.Dir = opts.dir
	case r.workingDir != "":
		cmd.Dir = r.workingDir
	}
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}
	if opts.input != "" {
		cmd.Stdin = strings.NewReader(opts.input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", gbperrors.NewGitCommandError(tool, args, stdout.String(), stderr.String(), ctxErr)
		}
		return "", gbperrors.NewGitCommandError(tool, args, stdout.String(), stderr.String(), err)
	}
	if opts.trim {
		return strings.TrimSpace(stdout.String()), nil
	}
	return stdout.String(), nil
}
