package runtime

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/output"
)

// LogFileEnv names an optional file receiving a debug level copy of the log
const LogFileEnv = "GBP_LOG_FILE"

// Context provides the logger, repository and options to commands
type Context struct {
	context.Context
	Splog output.Logger
	// Repo is nil when the working directory is not the top level of a repository
	Repo *git.Repository
	// Values are the merged options of the running command
	Values config.Values

	closer io.Closer
}

// NewContext creates a context for an already opened repository
func NewContext(ctx context.Context, log output.Logger, repo *git.Repository, values config.Values) *Context {
	if values == nil {
		values = config.Values{}
	}
	return &Context{Context: ctx, Splog: log, Repo: repo, Values: values}
}

// Options controls GetContext
type Options struct {
	// Command selects the configuration sections, e.g. "pq"
	Command string
	// Flags overrides file values with explicitly set flags
	Flags *pflag.FlagSet
	// Writer receives console output
	Writer io.Writer
	// Dir is the working directory, defaults to the process working directory
	Dir string
}

// GetContext opens the repository in the working directory (if any), reads
// its configuration and builds the console logger
func GetContext(ctx context.Context, opts Options) (*Context, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}

	repo, err := git.Open(ctx, dir)
	if err != nil && !errors.Is(err, gbperrors.ErrNotARepository) {
		return nil, err
	}

	var repoDir, gitDir string
	if repo != nil {
		repoDir, gitDir = repo.Path(), repo.GitDir()
	}
	values, err := config.Load(config.Files(repoDir, gitDir), opts.Command)
	if err != nil {
		return nil, err
	}
	if opts.Flags != nil {
		values.ApplyFlags(opts.Flags)
	}

	verbose, err := values.Bool("verbose", false)
	if err != nil {
		return nil, err
	}
	splog, err := output.NewSplogWithOptions(output.Options{
		Writer:  opts.Writer,
		Verbose: verbose,
		LogFile: os.Getenv(LogFileEnv),
	})
	if err != nil {
		return nil, err
	}

	c := NewContext(ctx, splog, repo, values)
	c.closer = splog
	return c, nil
}

// RequireRepo returns the repository or a user facing error outside of one
func (c *Context) RequireRepo() (*git.Repository, error) {
	if c.Repo == nil {
		return nil, gbperrors.NewGbpErrorKind(gbperrors.ErrNotARepository, "%s is not a git repository", c.dir())
	}
	return c.Repo, nil
}

func (c *Context) dir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Close releases the log file
func (c *Context) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
