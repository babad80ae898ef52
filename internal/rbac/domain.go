package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named bundle of permissions.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	CreatedAt time.Time
}
