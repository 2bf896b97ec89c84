// Command replacechain records product replacements and resolves products to
// their latest replacement.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"replacechain/internal/cli"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return cli.ExitCommandError
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cli.Execute(ctx, args[1:], stdin, stdout, stderr)
}
