package helpers

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agx/git-buildpackage-sub001/internal/config"
	"github.com/agx/git-buildpackage-sub001/internal/runtime"
)

// ErrReported marks errors that were already logged to the user
var ErrReported = errors.New("error already reported")

type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() []error {
	return []error{e.err, ErrReported}
}

// Run is a helper that provides a runtime context to a command's execution
// function. Errors returned by fn are logged and marked with ErrReported.
func Run(cmd *cobra.Command, fn func(ctx *runtime.Context) error) error {
	ctx, err := runtime.GetContext(cmd.Context(), runtime.Options{
		Command: CommandName(cmd),
		Flags:   cmd.Flags(),
		Writer:  cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer ctx.Close()
	if err := fn(ctx); err != nil {
		ctx.Splog.Error("%v", err)
		return &reportedError{err: err}
	}
	return nil
}

// CommandName returns the name of the top level subcommand cmd belongs to,
// which selects its configuration section
func CommandName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// AddCommonFlags declares the options shared by every command on flags,
// which belongs to cmd. Only flags given on the command line override
// configuration files, so the defaults here are for help output.
func AddCommonFlags(cmd *cobra.Command, flags *pflag.FlagSet) {
	flags.String("debian-branch", config.DefaultDebianBranch, "Branch the Debian packaging is kept on")
	flags.String("upstream-branch", config.DefaultUpstreamBranch, "Branch the upstream sources are imported to")
	flags.String("debian-tag", config.DefaultDebianTag, "Format string for Debian tags")
	flags.String("upstream-tag", config.DefaultUpstreamTag, "Format string for upstream tags")
	flags.Bool("sign-tags", false, "Sign tags")
	flags.String("keyid", "", "GPG keyid to sign tags with")
	_ = cmd.RegisterFlagCompletionFunc("debian-branch", CompleteBranches)
	_ = cmd.RegisterFlagCompletionFunc("upstream-branch", CompleteBranches)
}
