package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"replacechain/internal/tabular"
)

// BatchResult is the outcome of the batch command.
type BatchResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Rows   int    `json:"rows"`
}

// Text renders the result for humans.
func (r BatchResult) Text() string {
	return fmt.Sprintf("resolved %d rows from %s into %s\n", r.Rows, r.Input, r.Output)
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "batch <file.csv>",
		Short: "Fill in New Product and Date for every row of a CSV file",
		Long: `Read a CSV file with an Old Product column and write it back with the
New Product and Date columns set to each product's latest replacement.
Other columns are kept. Without --output the input file is rewritten.`,
		Args: args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			out := output
			if out == "" {
				out = a[0]
			}
			return runBatch(cmd, rootOpts, a[0], out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: rewrite the input)")
	return cmd
}

func runBatch(cmd *cobra.Command, opts *RootOptions, input, output string) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return fileError("read", input, err)
	}
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		f := newFormatter(cmd, opts)
		var buf bytes.Buffer
		rows, err := tabular.ResolveFile(ctx, bytes.NewReader(raw), &buf, a.manager, progressLogger(f, "resolved"))
		if err != nil {
			return fileError("resolve", input, err)
		}
		err = writeFile(output, func(w io.Writer) error {
			_, err := w.Write(buf.Bytes())
			return err
		})
		if err != nil {
			return fileError("write", output, err)
		}
		return f.Success(BatchResult{Input: input, Output: output, Rows: rows})
	})
}
