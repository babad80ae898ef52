package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	byEmail map[string]*auth.User
	creates int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: map[string]*auth.User{}}
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, email, hash string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = auth.NormalizeEmail(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, auth.ErrEmailTaken
	}
	now := time.Now().UTC()
	u := &auth.User{ID: uuid.New(), Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	m.byEmail[email] = u
	m.creates++
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) Ensure(ctx context.Context, email, hash string) (*auth.User, bool, error) {
	if u, err := m.FindByEmail(ctx, email); err == nil {
		return u, false, nil
	}
	u, err := m.Create(ctx, email, hash)
	return u, err == nil, err
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEmail)
}

// countingHasher records how many comparisons ran.
type countingHasher struct {
	compares atomic.Int32
}

func (h *countingHasher) Hash(password string) (string, error) {
	return auth.BcryptHasher{Cost: bcrypt.MinCost}.Hash(password)
}

func (h *countingHasher) Compare(hash, password string) error {
	h.compares.Add(1)
	return auth.BcryptHasher{}.Compare(hash, password)
}

type staticResolver map[uuid.UUID]rbac.PermissionSet

func (s staticResolver) EffectivePermissions(_ context.Context, id uuid.UUID) (rbac.PermissionSet, error) {
	if set, ok := s[id]; ok {
		return set.Clone(), nil
	}
	return rbac.NewPermissionSet(), nil
}
