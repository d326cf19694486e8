package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nigersavoir/savoir-client/internal/bus"
	"github.com/nigersavoir/savoir-client/internal/cart"
	"github.com/nigersavoir/savoir-client/internal/session"
	"github.com/spf13/cobra"
)

// watchRoutes maps the store keys owned by the session and cart managers to
// the topics their subscribers listen on.
func watchRoutes() map[string]bus.Topic {
	return map[string]bus.Topic{
		session.KeyToken: bus.TopicSessionChanged,
		session.KeyUser:  bus.TopicSessionChanged,
		cart.Key:         bus.TopicCartChanged,
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session and cart changes made by other processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.open(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			printSession := func() {
				user, ok := a.sessions.GetUser(ctx)
				switch {
				case !a.sessions.IsAuthenticated(ctx):
					fmt.Fprintln(out, "session: signed out")
				case ok:
					fmt.Fprintf(out, "session: %s <%s>\n", user.DisplayName, user.EmailAddress)
				default:
					fmt.Fprintln(out, "session: signed in")
				}
			}
			printCart := func() {
				fmt.Fprintf(out, "cart: %d line(s), %d item(s)\n", len(a.cart.Lines(ctx)), a.cart.Count(ctx))
			}

			defer a.sessions.Subscribe(printSession)()
			defer a.cart.Subscribe(printCart)()

			printSession()
			printCart()

			err := a.bus.Follow(ctx, a.store, watchRoutes())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
