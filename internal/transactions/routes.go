package transactions

import (
	"github.com/go-chi/chi/v5"

	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
)

// MountRoutes registers the transaction endpoints, each behind its capability.
// The caller is expected to have authenticated the request already.
func (h *Handler) MountRoutes(r chi.Router, gate rbac.Middleware) {
	r.With(gate.RequireAll(shared.PermTransactionsView)).Get("/", h.handleList)
	r.With(gate.RequireAll(shared.PermTransactionsInput)).Post("/", h.handleCreate)
	r.With(gate.RequireAll(shared.PermTransactionsApprove)).Post("/{id}/approve", h.handleApprove)
}
