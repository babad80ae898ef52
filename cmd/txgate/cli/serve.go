package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/txgate/txgate/internal/app"
	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/transactions"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := rt.logger

			tokens, err := auth.NewTokenIssuer(rt.cfg.JWTSecret, rt.cfg.JWTIssuer, rt.cfg.JWTTTL)
			if err != nil {
				return err
			}
			authService := auth.NewService(rt.users, auth.BcryptHasher{}, tokens, rt.rbac, logger, rt.metrics)
			txService := transactions.NewService(transactions.NewRepository(rt.pool), logger, rt.metrics)

			router := app.NewRouter(app.RouterParams{
				Logger:              logger,
				Config:              rt.cfg,
				AuthHandler:         auth.NewHandler(logger, authService),
				Authenticator:       authService,
				TransactionsHandler: transactions.NewHandler(logger, txService),
				RBACMiddleware:      rbac.Middleware{Resolver: rt.rbac, Logger: logger, Metrics: rt.metrics},
				DB:                  rt.pool,
				Metrics:             rt.metrics,
			})

			server := &http.Server{
				Addr:         rt.cfg.AppAddr,
				Handler:      router,
				ReadTimeout:  rt.cfg.AppReadTimeout,
				WriteTimeout: rt.cfg.AppWriteTimeout,
			}

			go func() {
				logger.Info("starting http server", slog.String("addr", rt.cfg.AppAddr), slog.String("api_prefix", rt.cfg.APIPrefix))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server", slog.Any("error", err))
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown", slog.Any("error", err))
				return err
			}
			return nil
		},
	}
}
