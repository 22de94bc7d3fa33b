package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

// ExistenceCache remembers sessions that are known to exist.
type ExistenceCache interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	Remember(ctx context.Context, sessionID string) error
	Close() error
}

// RedisCache stores one key per known session with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache dials and pings redis.
func NewRedisCache(ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCacheFromClient(client, prefix, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "eduapp:session:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisCache) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Remember(ctx context.Context, sessionID string) error {
	return r.client.Set(ctx, r.key(sessionID), "1", r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CachedCatalog consults the cache before the backing catalog. Only positive
// results are cached, so a session created after a miss is seen on the next
// lookup. Cache errors fall through to the backing catalog.
type CachedCatalog struct {
	next   interfaces.Catalog
	cache  ExistenceCache
	logger *zap.Logger
}

func NewCachedCatalog(next interfaces.Catalog, cache ExistenceCache, logger *zap.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, logger: logger.Named("catalog.cache")}
}

func (c *CachedCatalog) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	hit, err := c.cache.Exists(ctx, sessionID)
	if err != nil {
		c.logger.Warn("session cache lookup failed", zap.String("session_id", sessionID), zap.Error(err))
	} else if hit {
		return true, nil
	}

	exists, err := c.next.SessionExists(ctx, sessionID)
	if err != nil || !exists {
		return exists, err
	}

	if err := c.cache.Remember(ctx, sessionID); err != nil {
		c.logger.Warn("session cache store failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return true, nil
}

// RegisterSession writes through to the backing catalog and primes the cache.
func (c *CachedCatalog) RegisterSession(ctx context.Context, session *VideoSession) error {
	w, ok := c.next.(SessionWriter)
	if !ok {
		return ErrReadOnly
	}
	if err := w.RegisterSession(ctx, session); err != nil {
		return err
	}
	if err := c.cache.Remember(ctx, session.ID); err != nil {
		c.logger.Warn("session cache store failed", zap.String("session_id", session.ID), zap.Error(err))
	}
	return nil
}

func (c *CachedCatalog) HealthCheck(ctx context.Context) error {
	return c.next.HealthCheck(ctx)
}

func (c *CachedCatalog) Close() error {
	return errors.Join(c.cache.Close(), c.next.Close())
}
