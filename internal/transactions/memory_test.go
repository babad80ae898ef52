package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]string
	rows    map[uuid.UUID]Transaction
	keys    map[string]bool
	audits  []shared.AuditLog
	updates int
}

type memoryTx struct {
	repo    *memoryRepo
	rows    map[uuid.UUID]Transaction
	keys    map[string]bool
	audits  []shared.AuditLog
	updates int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: map[uuid.UUID]string{},
		rows:  map[uuid.UUID]Transaction{},
		keys:  map[string]bool{},
	}
}

func (r *memoryRepo) addUser(email string) uuid.UUID {
	id := uuid.New()
	r.users[id] = email
	return id
}

// WithTx stages writes and only publishes them when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, rows: map[uuid.UUID]Transaction{}, keys: map[string]bool{}}
	for k, v := range r.rows {
		tx.rows[k] = v
	}
	for k := range r.keys {
		tx.keys[k] = true
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.rows = tx.rows
	r.keys = tx.keys
	r.audits = append(r.audits, tx.audits...)
	r.updates += tx.updates
	return nil
}

func (r *memoryRepo) List(context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0, len(r.rows))
	for _, t := range r.rows {
		out = append(out, r.hydrate(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return r.hydrate(t), nil
}

func (r *memoryRepo) hydrate(t Transaction) Transaction {
	t.CreatedBy = UserRef{ID: t.CreatedByID, Email: r.users[t.CreatedByID]}
	if t.ApprovedByID != nil {
		t.ApprovedBy = &UserRef{ID: *t.ApprovedByID, Email: r.users[*t.ApprovedByID]}
	}
	return t
}

func (t *memoryTx) Insert(_ context.Context, tr Transaction) error {
	t.rows[tr.ID] = tr
	return nil
}

func (t *memoryTx) MarkApproved(_ context.Context, id, approverID uuid.UUID, at time.Time) (bool, error) {
	tr, ok := t.rows[id]
	if !ok || tr.Status != StatusPending {
		return false, nil
	}
	tr.Status = StatusApproved
	tr.ApprovedByID = &approverID
	tr.ApprovedAt = &at
	t.rows[id] = tr
	t.updates++
	return true, nil
}

func (t *memoryTx) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := t.rows[id]
	return ok, nil
}

func (t *memoryTx) Get(_ context.Context, id uuid.UUID) (Transaction, error) {
	tr, ok := t.rows[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t.repo.hydrate(tr), nil
}

func (t *memoryTx) ClaimIdempotencyKey(_ context.Context, key string) error {
	if t.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	t.keys[key] = true
	return nil
}

func (t *memoryTx) RecordAudit(_ context.Context, log shared.AuditLog) error {
	t.audits = append(t.audits, log)
	return nil
}
