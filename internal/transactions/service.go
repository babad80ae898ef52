package transactions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/shared"
)

var (
	// ErrNotFound indicates an unknown transaction id.
	ErrNotFound = shared.NewError(shared.ErrNotFound, "Transaction not found")
	// ErrAlreadyApproved indicates the transaction left the pending state.
	ErrAlreadyApproved = shared.NewError(shared.ErrConflict, "Transaction has already been approved")
	// ErrDuplicateRequest indicates a reused Idempotency-Key.
	ErrDuplicateRequest = shared.NewError(shared.ErrConflict, "A transaction was already created with this Idempotency-Key")
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
}

// Service orchestrates transaction flows.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the transaction service.
func NewService(repo RepositoryPort, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, metrics: metrics, now: time.Now}
}

// List returns every transaction, newest first.
func (s *Service) List(ctx context.Context) ([]Transaction, error) {
	return s.repo.List(ctx)
}

// Create validates input and records a pending transaction owned by creatorID.
func (s *Service) Create(ctx context.Context, input CreateInput, creatorID uuid.UUID) (Transaction, error) {
	input, err := input.Normalize()
	if err != nil {
		return Transaction{}, err
	}

	tr := Transaction{
		ID:          uuid.New(),
		Title:       input.Title,
		PriceGBP:    Money{Decimal: input.PriceGBP.Round(2)},
		Status:      StatusPending,
		CreatedByID: creatorID,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}

	var created Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.IdempotencyKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, input.IdempotencyKey); err != nil {
				if errors.Is(err, shared.ErrConflict) {
					return ErrDuplicateRequest
				}
				return err
			}
		}
		if err := tx.Insert(ctx, tr); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  creatorID,
			Action:   shared.AuditTransactionCreate,
			Entity:   "transaction",
			EntityID: tr.ID.String(),
			Meta:     map[string]any{"title": tr.Title, "priceGBP": tr.PriceGBP.String()},
			At:       tr.CreatedAt,
		}); err != nil {
			return err
		}
		created, err = tx.Get(ctx, tr.ID)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}

	s.metrics.TransactionCreated()
	s.logger.Info("transaction created",
		slog.String("transaction_id", created.ID.String()),
		slog.String("created_by", creatorID.String()))
	return created, nil
}

// Approve marks a pending transaction approved by approverID in one
// conditional update. Unknown ids fail with ErrNotFound and approved ones
// with ErrAlreadyApproved; neither changes any row.
func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID) (Transaction, error) {
	at := s.now().UTC().Truncate(time.Microsecond)

	var approved Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.MarkApproved(ctx, id, approverID, at)
		if err != nil {
			return err
		}
		if !ok {
			exists, err := tx.Exists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrAlreadyApproved
		}
		approved, err = tx.Get(ctx, id)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  approverID,
			Action:   shared.AuditTransactionApprove,
			Entity:   "transaction",
			EntityID: id.String(),
			Meta:     map[string]any{"createdBy": approved.CreatedByID.String()},
			At:       at,
		})
	})
	if err != nil {
		return Transaction{}, err
	}

	if approved.CreatedByID == approverID {
		s.logger.Warn("transaction self-approved",
			slog.String("transaction_id", id.String()),
			slog.String("user_id", approverID.String()))
	}
	s.metrics.TransactionApproved()
	s.logger.Info("transaction approved",
		slog.String("transaction_id", id.String()),
		slog.String("approved_by", approverID.String()))
	return approved, nil
}
