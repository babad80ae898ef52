package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/platform/httpx"
	"github.com/txgate/txgate/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// RequireAll ensures the current principal holds every required permission.
// It must run after authentication has placed a principal in the context.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := NewPermissionSet(perms...).Sorted()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			granted, err := m.Resolver.EffectivePermissions(r.Context(), principal.UserID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.String("user_id", principal.UserID.String()), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if missing := Missing(granted, required...); len(missing) > 0 {
				m.Metrics.AuthzDenied(r)
				if m.Logger != nil {
					m.Logger.Info("rbac denied",
						slog.String("user_id", principal.UserID.String()),
						slog.String("missing", strings.Join(missing, ",")))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "Access denied: missing permission(s) "+strings.Join(missing, ", "))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
