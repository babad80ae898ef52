// Package seed loads permissions, roles and demo users into the database.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/rbac"
)

//go:embed default.yaml
var defaultSeed []byte

// File is the seed document.
type File struct {
	Permissions []PermissionSpec `yaml:"permissions"`
	Roles       []RoleSpec       `yaml:"roles"`
	Users       []UserSpec       `yaml:"users"`
}

type PermissionSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type RoleSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type UserSpec struct {
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// Default returns the built-in seed.
func Default() (File, error) {
	return Parse(defaultSeed)
}

// Parse decodes and checks a seed document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("seed: decode: %w", err)
	}
	if err := f.check(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) check() error {
	perms := make(map[string]bool, len(f.Permissions))
	for _, p := range f.Permissions {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("seed: permission without name")
		}
		perms[strings.ToLower(name)] = true
	}
	roles := make(map[string]bool, len(f.Roles))
	for _, r := range f.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("seed: role without name")
		}
		roles[r.Name] = true
		for _, p := range r.Permissions {
			if !perms[strings.ToLower(strings.TrimSpace(p))] {
				return fmt.Errorf("seed: role %s references unknown permission %q", r.Name, p)
			}
		}
	}
	for _, u := range f.Users {
		if strings.TrimSpace(u.Email) == "" || u.Password == "" {
			return fmt.Errorf("seed: user requires email and password")
		}
		for _, r := range u.Roles {
			if !roles[r] {
				return fmt.Errorf("seed: user %s references unknown role %q", u.Email, r)
			}
		}
	}
	return nil
}

// RoleAdmin is the part of rbac.Service the seeder needs.
type RoleAdmin interface {
	EnsurePermission(ctx context.Context, name, description string) (rbac.Permission, error)
	SyncRole(ctx context.Context, name, description string, permissions []string) (rbac.Role, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
}

// Result summarises what Apply touched.
type Result struct {
	Permissions  int
	Roles        int
	UsersCreated int
	UsersKept    int
}

// Seeder applies seed files.
type Seeder struct {
	Users  auth.Repository
	RBAC   RoleAdmin
	Hasher auth.PasswordHasher
	Logger *slog.Logger
}

// Apply upserts everything in f. Running it twice is harmless; existing users
// keep their password.
func (s Seeder) Apply(ctx context.Context, f File) (Result, error) {
	var res Result
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hasher := s.Hasher
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	for _, p := range f.Permissions {
		if _, err := s.RBAC.EnsurePermission(ctx, p.Name, p.Description); err != nil {
			return res, fmt.Errorf("seed: permission %s: %w", p.Name, err)
		}
		res.Permissions++
	}
	for _, r := range f.Roles {
		if _, err := s.RBAC.SyncRole(ctx, r.Name, r.Description, r.Permissions); err != nil {
			return res, fmt.Errorf("seed: role %s: %w", r.Name, err)
		}
		res.Roles++
	}
	for _, u := range f.Users {
		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return res, fmt.Errorf("seed: hash %s: %w", u.Email, err)
		}
		user, created, err := s.Users.Ensure(ctx, u.Email, hash)
		if err != nil {
			return res, fmt.Errorf("seed: user %s: %w", u.Email, err)
		}
		if created {
			res.UsersCreated++
		} else {
			res.UsersKept++
		}
		for _, role := range u.Roles {
			if err := s.RBAC.AssignRole(ctx, user.ID, role); err != nil {
				return res, fmt.Errorf("seed: assign %s to %s: %w", role, u.Email, err)
			}
		}
		logger.Info("seeded user", slog.String("email", user.Email), slog.Bool("created", created))
	}
	return res, nil
}

var _ RoleAdmin = (*rbac.Service)(nil)
