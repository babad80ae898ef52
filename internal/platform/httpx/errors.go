// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/txgate/txgate/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", msg)
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", msg)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", msg)
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", msg)
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", msg)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "Server error. Please try again later.")
	}
}

// IsClientError reports whether err belongs to the caller-facing taxonomy.
func IsClientError(err error) bool {
	for _, kind := range []error{shared.ErrNotFound, shared.ErrConflict, shared.ErrValidation, shared.ErrForbidden, shared.ErrUnauthorized} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
