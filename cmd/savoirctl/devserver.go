package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nigersavoir/savoir-client/internal/fakeapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newDevServerCmd(a *app) *cobra.Command {
	var addr string
	var users []string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve an in-memory copy of the platform API under /api",
		Long: `Starts a local API server with a small seeded catalog, for trying the
client without the real platform. Data is lost when the server stops.

Example:
  savoirctl devserver --addr :8080 --user awa@example.ne:secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.DevServerAddr
			}
			fake := fakeapi.New(a.logger)
			for _, u := range users {
				email, password, ok := cutUser(u)
				if !ok {
					return errors.New("--user must look like email:password")
				}
				fake.AddUser(email, email, password, "USER")
			}

			srv := &http.Server{
				Addr:         addr,
				Handler:      devHandler(fake, true),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("dev server starting", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err, ok := <-errCh:
				if ok {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down dev server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			a.logger.Info("dev server exited")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $SAVOIR_DEVSERVER_ADDR)")
	cmd.Flags().StringArrayVar(&users, "user", nil, "pre-register an account as email:password (repeatable)")
	return cmd
}

func devHandler(fake *fakeapi.Server, logRequests bool) http.Handler {
	r := chi.NewRouter()
	if logRequests {
		r.Use(middleware.Logger)
	}
	r.Mount("/api", fake.Handler())
	return r
}

func cutUser(raw string) (email, password string, ok bool) {
	email, password, ok = strings.Cut(raw, ":")
	return email, password, ok && email != "" && password != ""
}
