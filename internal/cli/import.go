package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"replacechain/internal/tabular"
	"replacechain/internal/watch"
	"replacechain/pkg/domain"
)

// ImportResult is the outcome of one imported file.
type ImportResult struct {
	File string `json:"file"`
	domain.BulkResult
}

// Text renders the result for humans.
func (r ImportResult) Text() string {
	return fmt.Sprintf("%s: processed %d, applied %d, refused %d, new products %d\n",
		r.File, r.Processed, r.Applied, r.Refused, r.Created)
}

type importOptions struct {
	fileFormat string
	watchDir   string
	debounce   time.Duration
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	iopts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Load replacements from a CSV, JSON or YAML file",
		Long: `Load replacements from a file with the columns Old Product, New Product and
Date. Rows without a date use today's date. Rows are applied in file order;
the import stops at the first row whose state cannot be persisted.

With --watch <dir>, files created or written in <dir> are imported as they
settle, until the command is interrupted.`,
		Args: args(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			switch {
			case iopts.watchDir != "" && len(a) > 0:
				return NewExitError(ExitCommandError, "give either a file or --watch, not both")
			case iopts.watchDir != "":
				return runImportWatch(cmd, rootOpts, iopts)
			case len(a) == 1:
				return runImport(cmd, rootOpts, iopts, a[0])
			default:
				return NewExitError(ExitCommandError, "a file or --watch <dir> is required")
			}
		},
	}
	cmd.Flags().StringVar(&iopts.fileFormat, "file-format", "", "input format csv|json|yaml (default from extension)")
	cmd.Flags().StringVar(&iopts.watchDir, "watch", "", "watch a directory and import files as they appear")
	cmd.Flags().DurationVar(&iopts.debounce, "debounce", watch.DefaultDebounce, "quiet period before a watched file is imported")
	return cmd
}

func runImport(cmd *cobra.Command, opts *RootOptions, iopts *importOptions, path string) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		res, err := importFile(ctx, a, newFormatter(cmd, opts), iopts.fileFormat, path)
		if err != nil {
			return err
		}
		return newFormatter(cmd, opts).Success(res)
	})
}

func runImportWatch(cmd *cobra.Command, opts *RootOptions, iopts *importOptions) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		w, err := watch.New(iopts.watchDir, watch.WithExtensions(".csv", ".json", ".yaml", ".yml"), watch.WithDebounce(iopts.debounce))
		if err != nil {
			return WrapExitError(ExitFailure, "create watcher", err)
		}
		if err := w.Start(); err != nil {
			return fileError("watch", iopts.watchDir, err)
		}
		defer w.Stop()

		f := newFormatter(cmd, opts)
		a.logger.Info("watching for replacement files", "dir", iopts.watchDir)
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-w.Errors:
				a.logger.Warn("watch error", "error", err)
			case path := <-w.Changes:
				res, err := importFile(ctx, a, f, iopts.fileFormat, path)
				if err != nil {
					a.logger.Error("import failed", "file", path, "error", err)
					continue
				}
				if err := f.Success(res); err != nil {
					return err
				}
			}
		}
	})
}

func importFile(ctx context.Context, a *app, f *OutputFormatter, format, path string) (ImportResult, error) {
	fileFormat, err := inputFormat(format, path)
	if err != nil {
		return ImportResult{}, err
	}
	in, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fileError("open", path, err)
	}
	defer in.Close()

	records, err := tabular.ReadReplacements(in, tabular.ReadOptions{Format: fileFormat})
	if err != nil {
		return ImportResult{}, fileError("read", path, err)
	}
	res, err := a.manager.BulkLoad(ctx, records, progressLogger(f, "imported"))
	out := ImportResult{File: path, BulkResult: res}
	if err != nil {
		return out, WrapExitError(ExitFailure,
			fmt.Sprintf("import %s stopped after %d of %d rows", path, res.Processed, len(records)), err)
	}
	return out, nil
}

func inputFormat(flag, path string) (tabular.Format, error) {
	if flag == "" {
		return tabular.FormatFromPath(path, tabular.FormatCSV), nil
	}
	format, err := tabular.ParseFormat(flag)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid --file-format", err)
	}
	return format, nil
}

// progressLogger reports bulk progress in verbose mode, at most every
// thousand items and once at the end.
func progressLogger(f *OutputFormatter, verb string) domain.ProgressFunc {
	if !f.Verbose {
		return nil
	}
	return func(done, total int) {
		if done == total || done%1000 == 0 {
			f.VerboseLog("%s %d/%d", verb, done, total)
		}
	}
}
