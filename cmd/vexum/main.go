// Command vexum tracks staff, tasks, meetings, monthly reports, shifts and memos against a
// local SQLite file, Postgres, or another vexum instance.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kshoda-lgtm/vexum-management/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code. A run ended by a
// signal is a clean shutdown.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := cli.NewRootCmd(version)
	root.SetArgs(args)
	root.SetErr(stderr)
	root.SilenceErrors = true
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return 0
	}
	_, _ = fmt.Fprintln(stderr, "vexum:", err)
	return 1
}
