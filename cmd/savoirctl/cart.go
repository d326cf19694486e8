package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local shopping cart",
	}
	cmd.AddCommand(
		newCartListCmd(a),
		newCartAddCmd(a),
		newCartSetCmd(a),
		newCartRemoveCmd(a),
		newCartClearCmd(a),
	)
	return cmd
}

func newCartListCmd(a *app) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cart lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			lines := a.cart.Lines(ctx)
			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				fmt.Fprintln(out, "Cart is empty")
				return nil
			}

			books := map[int64]api.Book{}
			if !offline {
				ids := make([]int64, 0, len(lines))
				for _, l := range lines {
					ids = append(ids, l.ItemID)
				}
				list, err := a.client.ListBooks(ctx, api.BookFilter{IDs: ids})
				if err != nil {
					a.logger.Warn("book details unavailable", zap.Error(err))
				}
				for _, b := range list {
					books[b.ID] = b
				}
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BOOK\tQTY\tTITLE\tPRICE")
			var total float64
			for _, l := range lines {
				b, known := books[l.ItemID]
				title, price := "-", "-"
				if known {
					title = b.Title
					price = strconv.FormatFloat(b.Price*float64(l.Quantity), 'f', 0, 64)
					total += b.Price * float64(l.Quantity)
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", l.ItemID, l.Quantity, title, price)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d item(s)", a.cart.Count(ctx))
			if total > 0 {
				fmt.Fprintf(out, ", total %.0f FCFA", total)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "do not fetch book details")
	return cmd
}

func newCartAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <book-id> [quantity]",
		Short: "Add a book to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty := 1
			if len(args) == 2 {
				if qty, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.AddItem(cmd.Context(), id, qty); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart has %d item(s)\n", a.cart.Count(cmd.Context()))
			return nil
		},
	}
}

func newCartSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <book-id> <quantity>",
		Short: "Set the quantity of a book; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.SetQuantity(cmd.Context(), id, qty); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart has %d item(s)\n", a.cart.Count(cmd.Context()))
			return nil
		},
	}
}

func newCartRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.RemoveItem(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart has %d item(s)\n", a.cart.Count(cmd.Context()))
			return nil
		},
	}
}

func newCartClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return nil
		},
	}
}
