package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// ProductList is the output of the list command.
type ProductList struct {
	Products []string `json:"products"`
	Count    int      `json:"count"`
}

// Text renders one product per line.
func (l ProductList) Text() string {
	if len(l.Products) == 0 {
		return ""
	}
	return strings.Join(l.Products, "\n") + "\n"
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known product in registration order",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, a *app) error {
				products := a.manager.ListProducts()
				if products == nil {
					products = []string{}
				}
				return newFormatter(cmd, rootOpts).Success(ProductList{Products: products, Count: len(products)})
			})
		},
	}
}
