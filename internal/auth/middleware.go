package auth

import (
	"net/http"
	"strings"

	"github.com/txgate/txgate/internal/platform/httpx"
	"github.com/txgate/txgate/internal/shared"
)

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(raw string) (shared.Principal, error)
}

// RequireAuth validates "Authorization: Bearer <token>" and stores the
// principal in the request context. Missing or invalid tokens get 401.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			principal, err := authn.Authenticate(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httpx.RespondError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
