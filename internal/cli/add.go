package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"replacechain/internal/tabular"
	"replacechain/pkg/domain"
)

// AddResult is the outcome of the add command.
type AddResult struct {
	Old     string `json:"old"`
	New     string `json:"new"`
	Date    string `json:"date"`
	Applied bool   `json:"applied"`
	Latest  string `json:"latest"`
	Since   string `json:"since,omitempty"`
}

// Text renders the result for humans.
func (r AddResult) Text() string {
	if r.Applied {
		return fmt.Sprintf("%s -> %s (%s)\n", r.Old, r.Latest, dateText(r.Since))
	}
	return fmt.Sprintf("refused: %s already resolves to %s (%s), newer than %s\n",
		r.Old, r.Latest, dateText(r.Since), r.Date)
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "add <old> <new>",
		Short: "Record that <new> replaced <old>",
		Long: `Record that <new> replaced <old> on --date (default today, UTC).

Unknown products are registered on the fly. A replacement dated before the
one already recorded for <old> is refused and reported, not applied.`,
		Args: args(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, a []string) error {
			return runAdd(cmd, rootOpts, a[0], a[1], date)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "replacement date (YYYY-MM-DD, default today)")
	return cmd
}

func runAdd(cmd *cobra.Command, opts *RootOptions, oldName, newName, rawDate string) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if rawDate != "" {
		parsed, err := tabular.ParseDate(rawDate)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
		date = parsed
	}
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		out, err := a.manager.AddReplacement(ctx, tabular.NormalizeName(oldName), tabular.NormalizeName(newName), date)
		if err != nil {
			return operationError("add replacement", err)
		}
		return newFormatter(cmd, opts).Success(AddResult{
			Old:     out.Replacement.Old,
			New:     out.Replacement.New,
			Date:    date.Format(tabular.DateLayout),
			Applied: out.Applied,
			Latest:  out.Latest,
			Since:   tabular.FormatDate(out.Date),
		})
	})
}

func dateText(s string) string {
	if s == "" {
		return noDate
	}
	return s
}

const noDate = "no date available"

func resolutionDate(res domain.Resolution) string {
	return tabular.FormatDate(res.Date)
}
