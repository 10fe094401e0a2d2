package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/emailkit/pkg/health"
	"github.com/dmitrymomot/emailkit/pkg/mailer/preview"
)

func (a *app) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve email previews over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.environment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if addr == "" {
				addr = a.cfg.Preview.Addr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           a.previewRouter(env),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return a.serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default preview.addr)")
	return cmd
}

func (a *app) previewRouter(env *environment) http.Handler {
	r := healthRouter(env.checks, a.log)
	r.Mount("/emails", preview.New(env.registry, preview.WithLogger(a.log)))
	return r
}

func healthRouter(checks health.Checks, log *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness(checks, health.WithLogger(log)))
	return r
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func (a *app) serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.InfoContext(ctx, "http server started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Preview.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.InfoContext(ctx, "http server stopped")
	return <-errCh
}
