package rbac

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/txgate/txgate/internal/platform/db"
	"github.com/txgate/txgate/internal/shared"
)

// Repository defines persistence for the role/permission graph.
type Repository interface {
	UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	EnsurePermission(ctx context.Context, name, description string) (Permission, error)
	EnsureRole(ctx context.Context, name, description string) (Role, error)
	SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error
	RemoveRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const rolePermissionsSelect = `SELECT r.id, r.name, r.description, r.created_at, r.updated_at, p.id, p.name, p.description
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id`

// UserRoles loads the roles assigned to a user together with their permissions.
func (r *PGRepository) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, rolePermissionsSelect+`
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name, p.name`, userID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// ListRoles returns all roles with permissions ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, rolePermissionsSelect+`
ORDER BY r.name, p.name`)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// RoleByName fetches a role and its permissions.
func (r *PGRepository) RoleByName(ctx context.Context, name string) (Role, error) {
	rows, err := r.pool.Query(ctx, rolePermissionsSelect+`
WHERE r.name = $1
ORDER BY p.name`, strings.TrimSpace(name))
	if err != nil {
		return Role{}, err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return Role{}, err
	}
	if len(roles) == 0 {
		return Role{}, shared.Errorf(shared.ErrNotFound, "role %q not found", name)
	}
	return roles[0], nil
}

// EnsurePermission upserts a permission by name.
func (r *PGRepository) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (id, name, description) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
RETURNING id, name, description`, uuid.New(), name, description).Scan(&p.ID, &p.Name, &p.Description)
	return p, err
}

// EnsureRole upserts a role by name.
func (r *PGRepository) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (id, name, description) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, updated_at = NOW()
RETURNING id, name, description, created_at, updated_at`, uuid.New(), name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// SetRolePermissions replaces the permissions attached to a role.
func (r *PGRepository) SetRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, pid); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRole assigns a role to the given user; repeating it is a no-op.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// RemoveRole removes a role from a user and reports whether a row was deleted.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			role     Role
			permID   pgtype.UUID
			permName pgtype.Text
			permDesc pgtype.Text
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &permID, &permName, &permDesc); err != nil {
			return nil, err
		}
		i, ok := index[role.ID]
		if !ok {
			roles = append(roles, role)
			i = len(roles) - 1
			index[role.ID] = i
		}
		if permID.Valid {
			roles[i].Permissions = append(roles[i].Permissions, Permission{
				ID:          uuid.UUID(permID.Bytes),
				Name:        permName.String,
				Description: permDesc.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

var _ Repository = (*PGRepository)(nil)
