package transactions

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/platform/httpx"
	"github.com/txgate/txgate/internal/shared"
)

// IdempotencyHeader optionally deduplicates create requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the transaction endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

type createRequest struct {
	Title    string `json:"title" validate:"required"`
	PriceGBP *Money `json:"priceGBP" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Title:          req.Title,
		PriceGBP:       *req.PriceGBP,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	}, principal.UserID)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.NewError(shared.ErrValidation, "Validation failed: id: must be a valid UUID"))
		return
	}
	approved, err := h.service.Approve(r.Context(), id, principal.UserID)
	if err != nil {
		h.fail(w, "approve", err)
		return
	}
	httpx.JSON(w, http.StatusOK, approved)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("transactions "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
