package rbac_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	roles     map[string]*rbac.Role
	perms     map[string]rbac.Permission
	userRoles map[uuid.UUID]map[uuid.UUID]bool
	loads     atomic.Int32

	// afterLoad runs once UserRoles has read its snapshot, outside the lock.
	afterLoad func(ctx context.Context) error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:     map[string]*rbac.Role{},
		perms:     map[string]rbac.Permission{},
		userRoles: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (m *memoryRepo) UserRoles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error) {
	m.loads.Add(1)
	m.mu.Lock()
	var out []rbac.Role
	for _, r := range m.roles {
		if m.userRoles[userID][r.ID] {
			out = append(out, *r)
		}
	}
	hook := m.afterLoad
	m.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *memoryRepo) ListRoles(context.Context) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memoryRepo) ListPermissions(context.Context) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) RoleByName(_ context.Context, name string) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[name]
	if !ok {
		return rbac.Role{}, shared.Errorf(shared.ErrNotFound, "role %q not found", name)
	}
	return *r, nil
}

func (m *memoryRepo) EnsurePermission(_ context.Context, name, description string) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[name]
	if !ok {
		p = rbac.Permission{ID: uuid.New(), Name: name}
	}
	p.Description = description
	m.perms[name] = p
	return p, nil
}

func (m *memoryRepo) EnsureRole(_ context.Context, name, description string) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[name]
	if !ok {
		r = &rbac.Role{ID: uuid.New(), Name: name}
		m.roles[name] = r
	}
	r.Description = description
	return *r, nil
}

func (m *memoryRepo) SetRolePermissions(_ context.Context, roleID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.ID != roleID {
			continue
		}
		r.Permissions = nil
		for _, id := range ids {
			for _, p := range m.perms {
				if p.ID == id {
					r.Permissions = append(r.Permissions, p)
				}
			}
		}
	}
	return nil
}

func (m *memoryRepo) AssignRole(_ context.Context, userID, roleID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = map[uuid.UUID]bool{}
	}
	m.userRoles[userID][roleID] = true
	return nil
}

func (m *memoryRepo) RemoveRole(_ context.Context, userID, roleID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.userRoles[userID][roleID] {
		return false, nil
	}
	delete(m.userRoles[userID], roleID)
	return true, nil
}

var _ rbac.Repository = (*memoryRepo)(nil)

// seedRoles installs the three standard roles.
func seedRoles(m *memoryRepo) {
	ctx := context.Background()
	for _, p := range shared.TransactionScopes() {
		_, _ = m.EnsurePermission(ctx, p, "")
	}
	define := func(name string, perms ...string) {
		r, _ := m.EnsureRole(ctx, name, "")
		var ids []uuid.UUID
		for _, p := range perms {
			ids = append(ids, m.perms[p].ID)
		}
		_ = m.SetRolePermissions(ctx, r.ID, ids)
	}
	define("Auditor", shared.PermTransactionsView)
	define("Inputter", shared.PermTransactionsView, shared.PermTransactionsInput)
	define("Approver", shared.PermTransactionsView, shared.PermTransactionsApprove)
}
