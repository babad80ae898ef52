package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/platform/httpx"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/transactions"
)

// Pinger reports backing store liveness; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	AuthHandler         *auth.Handler
	Authenticator       auth.Authenticator
	TransactionsHandler *transactions.Handler
	RBACMiddleware      rbac.Middleware
	DB                  Pinger
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.DB.Ping(ctx); err != nil {
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	prefix := "/api"
	if params.Config != nil {
		prefix = params.Config.APIPrefix
	}
	api := chi.NewRouter()
	requireAuth := auth.RequireAuth(params.Authenticator)
	api.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r, requireAuth)
	})
	api.Route("/transactions", func(r chi.Router) {
		r.Use(requireAuth)
		params.TransactionsHandler.MountRoutes(r, params.RBACMiddleware)
	})
	api.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Resource not found")
	})

	if prefix == "" {
		r.Mount("/", api)
	} else {
		r.Mount(prefix, api)
	}
	return r
}
