package main

import (
	"errors"
	"fmt"

	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/spf13/cobra"
)

func newCheckoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Order the books in the cart",
		Long: `Sends the cart to the server as a new order. The cart is emptied only
when the server accepts the order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			order, err := a.checkout.Checkout(cmd.Context())
			if errors.Is(err, domain.ErrAuthenticationRequired) {
				return fmt.Errorf("%w: run savoirctl login first", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order #%d %s\n", order.ID, order.Status)
			for _, item := range order.Items {
				fmt.Fprintf(out, "  %d x %s  %.0f FCFA\n", item.Quantity, item.Title, item.LineTotal)
			}
			fmt.Fprintf(out, "Total: %.0f FCFA\n", order.TotalAmount)
			return nil
		},
	}
}
