package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"replacechain/internal/tabular"
)

// ResolveResult is one resolved product.
type ResolveResult struct {
	Product string `json:"product"`
	Latest  string `json:"latest"`
	Date    string `json:"date,omitempty"`
	Found   bool   `json:"found"`
}

// ResolveResults renders one line per product.
type ResolveResults []ResolveResult

// Text renders the results for humans.
func (rs ResolveResults) Text() string {
	var b strings.Builder
	for _, r := range rs {
		fmt.Fprintf(&b, "%s -> %s (%s)", r.Product, r.Latest, dateText(r.Date))
		if !r.Found {
			b.WriteString(" [unknown product]")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Print the latest replacement of each product",
		Long: `Print the product that currently supersedes each <name>, with the date of
the latest replacement in its chain. Unknown products resolve to themselves.`,
		Args: args(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *app) error {
				results := make(ResolveResults, 0, len(a))
				for _, name := range a {
					res := app.manager.Resolve(ctx, tabular.NormalizeName(name))
					results = append(results, ResolveResult{
						Product: res.Product,
						Latest:  res.Latest,
						Date:    resolutionDate(res),
						Found:   res.Found,
					})
				}
				return newFormatter(cmd, rootOpts).Success(results)
			})
		},
	}
}
