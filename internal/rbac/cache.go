package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// PermissionCache stores resolved permission sets per user.
type PermissionCache interface {
	Get(ctx context.Context, userID uuid.UUID) (PermissionSet, bool, error)
	Set(ctx context.Context, userID uuid.UUID, perms PermissionSet) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

const (
	redisKeyPrefix  = "rbac:perms"
	redisVersionKey = "rbac:perms:version"
)

// RedisCache keeps permission sets in Redis. Keys embed a version counter so
// InvalidateAll is a single INCR.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache instantiates the cache helper.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(ctx context.Context, userID uuid.UUID) (string, error) {
	ver, err := c.client.Get(ctx, redisVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", redisKeyPrefix, ver, userID), nil
}

// Get loads a cached set.
func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (PermissionSet, bool, error) {
	key, err := c.key(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return nil, false, err
	}
	return NewPermissionSet(names...), true, nil
}

// Set stores a set for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, perms PermissionSet) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(perms.Sorted())
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops the entry for one user.
func (c *RedisCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// InvalidateAll bumps the version so every existing entry is ignored.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, redisVersionKey).Err()
}

// MemoryCache keeps permission sets in process memory.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache builds an in-process cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, userID uuid.UUID) (PermissionSet, bool, error) {
	v, ok := m.c.Get(userID.String())
	if !ok {
		return nil, false, nil
	}
	perms, _ := v.(PermissionSet)
	return perms.Clone(), true, nil
}

func (m *MemoryCache) Set(_ context.Context, userID uuid.UUID, perms PermissionSet) error {
	m.c.SetDefault(userID.String(), perms.Clone())
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	m.c.Delete(userID.String())
	return nil
}

func (m *MemoryCache) InvalidateAll(context.Context) error {
	m.c.Flush()
	return nil
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID) (PermissionSet, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, uuid.UUID, PermissionSet) error         { return nil }
func (NopCache) Invalidate(context.Context, uuid.UUID) error                 { return nil }
func (NopCache) InvalidateAll(context.Context) error                         { return nil }

var (
	_ PermissionCache = (*RedisCache)(nil)
	_ PermissionCache = (*MemoryCache)(nil)
	_ PermissionCache = NopCache{}
)
