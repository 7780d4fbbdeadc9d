package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/youtell/visrec-cli/internal/cmd"
)

// exitInterrupted follows the shell convention of 128+SIGINT.
const exitInterrupted = 130

var (
	executeCmd  = cmd.Execute
	mapExitCode = cmd.ExitCode
	terminate   = os.Exit
	notifyCtx   = signal.NotifyContext
)

func run(args []string) int {
	ctx, stop := notifyCtx(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := executeCmd(ctx, args); err != nil {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		return mapExitCode(err)
	}
	return 0
}

func main() {
	terminate(run(os.Args[1:]))
}
