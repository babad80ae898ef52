package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/txgate/txgate/internal/app"
	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/platform/cache"
	"github.com/txgate/txgate/internal/platform/db"
	"github.com/txgate/txgate/internal/rbac"
)

// runtime bundles the shared process dependencies.
type runtime struct {
	cfg     *app.Config
	logger  *slog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	metrics *observability.Metrics
	users   *auth.PGRepository
	rbac    *rbac.Service
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGConnLifetime})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		metrics: observability.NewMetrics(),
		users:   auth.NewRepository(pool),
	}
	rt.rbac = rbac.NewService(rbac.NewRepository(pool), rt.permissionCache(ctx), logger, rt.metrics)
	return rt, nil
}

func (rt *runtime) permissionCache(ctx context.Context) rbac.PermissionCache {
	switch rt.cfg.PermissionCache {
	case "none":
		return rbac.NopCache{}
	case "memory":
		return rbac.NewMemoryCache(rt.cfg.PermissionCacheTTL)
	}
	client, err := cache.New(ctx, rt.cfg.RedisAddr, rt.cfg.RedisPassword, rt.cfg.RedisDB)
	if err != nil {
		rt.logger.Warn("redis ping", slog.Any("error", err))
	}
	rt.redis = client
	return rbac.NewRedisCache(client, rt.cfg.PermissionCacheTTL)
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	rt.pool.Close()
}
