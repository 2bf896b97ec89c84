package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"replacechain/internal/tabular"
)

// StateResult is the outcome of state export and import.
type StateResult struct {
	Action   string `json:"action"`
	File     string `json:"file"`
	Products int    `json:"products"`
}

// Text renders the result for humans.
func (r StateResult) Text() string {
	dir := "to"
	if r.Action == "imported" {
		dir = "from"
	}
	return fmt.Sprintf("%s %d products %s %s\n", r.Action, r.Products, dir, r.File)
}

// NewStateCommand creates the state command group.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Copy the raw persisted state to and from a JSON file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Write the current state to a JSON file",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, app *app) error {
				state := app.manager.Snapshot()
				err := writeFile(a[0], func(w io.Writer) error { return tabular.WriteState(w, state) })
				if err != nil {
					return fileError("write", a[0], err)
				}
				return newFormatter(cmd, rootOpts).Success(StateResult{Action: "exported", File: a[0], Products: len(state.Products)})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored state with the contents of a JSON file",
		Long: `Replace the stored state with the contents of a JSON file written by
"state export". The file is validated before anything is overwritten.`,
		Args: args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			in, err := os.Open(a[0])
			if err != nil {
				return fileError("open", a[0], err)
			}
			defer in.Close()
			state, err := tabular.ReadState(in)
			if err != nil {
				return fileError("read", a[0], err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *app) error {
				if err := app.manager.ImportState(ctx, state); err != nil {
					return operationError("import state", err)
				}
				return newFormatter(cmd, rootOpts).Success(StateResult{Action: "imported", File: a[0], Products: len(state.Products)})
			})
		},
	})
	return cmd
}
