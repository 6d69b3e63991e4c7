package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit statuses: every item reached a recorded state, a run-fatal error
// aborted processing, or the command could not start or was interrupted.
const (
	exitOK      = 0
	exitSetup   = 1
	exitAborted = 2
)

var (
	errAborted     = errors.New("run aborted by a fatal error")
	errInterrupted = errors.New("run interrupted")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errAborted) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errAborted):
		return exitAborted
	case errors.Is(err, errInterrupted):
		return exitSetup
	default:
		return exitSetup
	}
}
