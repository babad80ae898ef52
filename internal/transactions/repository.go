package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/txgate/txgate/internal/platform/db"
	"github.com/txgate/txgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool        *pgxpool.Pool
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:        pool,
		audit:       shared.NewAuditLogger(pool),
		idempotency: shared.NewIdempotencyStore(pool),
	}
}

// TxRepository exposes the operations that run inside one database transaction.
type TxRepository interface {
	Insert(ctx context.Context, t Transaction) error
	MarkApproved(ctx context.Context, id, approverID uuid.UUID, at time.Time) (bool, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	ClaimIdempotencyKey(ctx context.Context, key string) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type txRepo struct {
	tx          pgx.Tx
	audit       *shared.AuditLogger
	idempotency *shared.IdempotencyStore
}

// WithTx runs fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			tx:          tx,
			audit:       r.audit.In(tx),
			idempotency: r.idempotency.In(tx),
		})
	})
}

const selectTransactions = `SELECT t.id, t.title, t.price_gbp, t.status, t.created_by, c.email, t.created_at,
       t.approved_by, a.email, t.approved_at
FROM transactions t
JOIN users c ON c.id = t.created_by
LEFT JOIN users a ON a.id = t.approved_by`

// List returns every transaction newest first.
func (r *Repository) List(ctx context.Context) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, selectTransactions+`
ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches one transaction.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return getTransaction(ctx, r.pool, id)
}

func (t *txRepo) Insert(ctx context.Context, tr Transaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (id, title, price_gbp, status, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, tr.ID, tr.Title, tr.PriceGBP.Decimal, string(tr.Status), tr.CreatedByID, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("transactions: insert: %w", err)
	}
	return nil
}

// MarkApproved flips a pending transaction to approved. It reports false when
// no pending row with id exists.
func (t *txRepo) MarkApproved(ctx context.Context, id, approverID uuid.UUID, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE transactions
SET status = 'approved', approved_by = $2, approved_at = $3
WHERE id = $1 AND status = 'pending'`, id, approverID, at)
	if err != nil {
		return false, fmt.Errorf("transactions: approve: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepo) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func (t *txRepo) ClaimIdempotencyKey(ctx context.Context, key string) error {
	return t.idempotency.CheckAndInsert(ctx, key, "transactions.create")
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, log)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getTransaction(ctx context.Context, q queryRower, id uuid.UUID) (Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, selectTransactions+`
WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t             Transaction
		price         decimal.Decimal
		status        string
		approvedBy    pgtype.UUID
		approverEmail pgtype.Text
		approvedAt    pgtype.Timestamptz
	)
	if err := row.Scan(&t.ID, &t.Title, &price, &status, &t.CreatedByID, &t.CreatedBy.Email, &t.CreatedAt,
		&approvedBy, &approverEmail, &approvedAt); err != nil {
		return Transaction{}, err
	}
	t.PriceGBP = Money{Decimal: price}
	t.Status = Status(status)
	t.CreatedBy.ID = t.CreatedByID
	if approvedBy.Valid {
		id := uuid.UUID(approvedBy.Bytes)
		t.ApprovedByID = &id
		t.ApprovedBy = &UserRef{ID: id, Email: approverEmail.String}
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		t.ApprovedAt = &at
	}
	return t, nil
}

var _ RepositoryPort = (*Repository)(nil)
