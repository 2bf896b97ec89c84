package cli

import (
	"context"
	"errors"
	"io"
)

// Execute runs the CLI with args (without the program name) and returns the
// process exit code. Errors are reported on stderr, or on stdout as a JSON
// envelope when --format json is in effect.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// unknown commands and similar parse errors come straight from cobra
		err = WrapExitError(ExitCommandError, "command error", err)
	}
	format := opts.Format
	if format != "json" {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	if format == "text" {
		f.Writer = stderr
	}
	_ = f.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}
