package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agx/git-buildpackage-sub001/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCmd(version, commit, date))
	stop()
	os.Exit(code)
}
