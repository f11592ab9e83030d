package tenants

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/models"
)

// cacheTTL bounds staleness of slug resolution; tenant mutations also
// invalidate eagerly.
const cacheTTL = 60 * time.Second

const cacheKeyPrefix = "tenant:slug:"

// Cache wraps slug resolution with a Redis lookaside cache. Redis failures
// fall through to the underlying repository, so resolution stays correct when
// the cache is down.
type Cache struct {
	repo   *Repository
	client *redis.Client
	logger *zap.Logger
}

// NewCache creates a resolution cache over the repository.
func NewCache(repo *Repository, client *redis.Client, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{repo: repo, client: client, logger: logger}
}

// ActiveBySlug resolves an active tenant by subdomain, consulting Redis
// first. Only hits (existing active tenants) are cached; misses always go to
// the database so a newly activated tenant is visible immediately.
func (c *Cache) ActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	key := cacheKeyPrefix + slug
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var t models.Tenant
		if err := json.Unmarshal([]byte(raw), &t); err == nil {
			return &t, nil
		}
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("tenant cache read failed", zap.String("slug", slug), zap.Error(err))
	}

	t, err := c.repo.ActiveBySlug(ctx, slug)
	if err != nil || t == nil {
		return t, err
	}
	if raw, err := json.Marshal(t); err == nil {
		if err := c.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			c.logger.Warn("tenant cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return t, nil
}

// Invalidate drops the cached entry for a slug. Called after tenant updates,
// deactivation, and deletion.
func (c *Cache) Invalidate(ctx context.Context, slug string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+slug).Err(); err != nil {
		c.logger.Warn("tenant cache invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}
