package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/shared"
)

// Resolver returns the effective permission set of a user.
type Resolver interface {
	EffectivePermissions(ctx context.Context, userID uuid.UUID) (PermissionSet, error)
}

// Service orchestrates RBAC operations.
type Service struct {
	repo    Repository
	cache   PermissionCache
	logger  *slog.Logger
	metrics *observability.Metrics
	group   singleflight.Group
	gens    generations
}

// generations counts invalidations so a load that raced one is not cached.
// A user's generation is the global count plus its own; both only grow.
type generations struct {
	mu   sync.Mutex
	all  uint64
	user map[uuid.UUID]uint64
}

func (g *generations) current(userID uuid.UUID) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.all + g.user[userID]
}

func (g *generations) bump(userID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user == nil {
		g.user = make(map[uuid.UUID]uint64)
	}
	g.user[userID]++
}

func (g *generations) bumpAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.all++
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(repo Repository, cache PermissionCache, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, metrics: metrics}
}

// EffectivePermissions returns the union of permissions over every role the
// user holds. Cache failures are logged and the store is consulted instead.
func (s *Service) EffectivePermissions(ctx context.Context, userID uuid.UUID) (PermissionSet, error) {
	perms, hit, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("rbac cache get", slog.String("user_id", userID.String()), slog.Any("error", err))
	}
	s.metrics.CacheLookup(hit)
	if hit {
		return perms, nil
	}

	// The shared load must outlive any single caller, and callers arriving
	// after an invalidation start a fresh load.
	gen := s.gens.current(userID)
	key := userID.String() + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		roles, err := s.repo.UserRoles(loadCtx, userID)
		if err != nil {
			return nil, fmt.Errorf("rbac: load roles: %w", err)
		}
		set := UnionPermissions(roles)
		if s.gens.current(userID) != gen {
			return set, nil
		}
		if err := s.cache.Set(loadCtx, userID, set); err != nil {
			s.logger.Warn("rbac cache set", slog.String("user_id", userID.String()), slog.Any("error", err))
		}
		if s.gens.current(userID) != gen {
			// Invalidated between the check and the write.
			if err := s.cache.Invalidate(loadCtx, userID); err != nil {
				s.logger.Warn("rbac cache invalidate", slog.String("user_id", userID.String()), slog.Any("error", err))
			}
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet).Clone(), nil
}

// UserRoles lists the roles assigned to a user.
func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	return s.repo.UserRoles(ctx, userID)
}

// ListRoles returns all roles with their permissions.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EnsurePermission upserts a permission.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = normalize(name)
	if name == "" {
		return Permission{}, shared.NewError(shared.ErrValidation, "Validation failed: permission name required")
	}
	return s.repo.EnsurePermission(ctx, name, strings.TrimSpace(description))
}

// SyncRole upserts a role and replaces its permissions with the named ones.
// Every named permission must already exist.
func (s *Service) SyncRole(ctx context.Context, name, description string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewError(shared.ErrValidation, "Validation failed: role name required")
	}
	all, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return Role{}, err
	}
	byName := make(map[string]uuid.UUID, len(all))
	for _, p := range all {
		byName[p.Name] = p.ID
	}
	ids := make([]uuid.UUID, 0, len(permissions))
	for _, p := range permissions {
		id, ok := byName[normalize(p)]
		if !ok {
			return Role{}, shared.Errorf(shared.ErrValidation, "Validation failed: unknown permission %q", p)
		}
		ids = append(ids, id)
	}

	role, err := s.repo.EnsureRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	if err := s.repo.SetRolePermissions(ctx, role.ID, ids); err != nil {
		return Role{}, err
	}
	s.gens.bumpAll()
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("rbac cache invalidate all", slog.Any("error", err))
	}
	return s.repo.RoleByName(ctx, role.Name)
}

// AssignRole grants the named role to a user.
func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	role, err := s.repo.RoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RevokeRole removes the named role from a user and reports whether it was held.
func (s *Service) RevokeRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	role, err := s.repo.RoleByName(ctx, roleName)
	if err != nil {
		return false, err
	}
	removed, err := s.repo.RemoveRole(ctx, userID, role.ID)
	if err != nil {
		return false, err
	}
	if removed {
		s.invalidate(ctx, userID)
	}
	return removed, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	s.gens.bump(userID)
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("rbac cache invalidate", slog.String("user_id", userID.String()), slog.Any("error", err))
	}
}

var _ Resolver = (*Service)(nil)
