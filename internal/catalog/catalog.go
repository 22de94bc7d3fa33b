// Package catalog holds the session catalog backends consulted by the session
// validator: an embedded SQLite table, a MongoDB videos collection, and the
// Redis cache and circuit breaker that wrap either of them.
package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbconfig "github.com/Kaushik-110000/eduapp/pkg/database"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// SessionWriter is implemented by catalogs that accept new video sessions.
// Every backend and wrapper built by New implements it.
type SessionWriter interface {
	RegisterSession(ctx context.Context, session *VideoSession) error
}

var (
	_ SessionWriter = (*SQLiteCatalog)(nil)
	_ SessionWriter = (*MongoCatalog)(nil)
	_ SessionWriter = (*CachedCatalog)(nil)
	_ SessionWriter = (*BreakerCatalog)(nil)
)

// Options selects and configures a catalog stack.
type Options struct {
	Driver string

	SQLite *dbconfig.Config

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CachePrefix   string
	CacheTTL      time.Duration

	Breaker BreakerSettings
}

// New builds the backend named by opts.Driver, then wraps it with the cache
// (when enabled) and the circuit breaker.
func New(ctx context.Context, opts Options, logger *zap.Logger) (interfaces.Catalog, error) {
	var base interfaces.Catalog

	switch opts.Driver {
	case DriverSQLite, "":
		cfg := opts.SQLite
		if cfg == nil {
			cfg = dbconfig.DefaultConfig()
		}
		c, err := NewSQLiteCatalog(cfg, logger)
		if err != nil {
			return nil, err
		}
		base = c
	case DriverMongo:
		c, err := NewMongoCatalog(ctx, opts.MongoURI, opts.MongoDatabase, opts.MongoCollection, logger)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	if opts.RedisEnabled {
		cache, err := NewRedisCache(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.CachePrefix, opts.CacheTTL)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		base = NewCachedCatalog(base, cache, logger)
	}

	return NewBreakerCatalog(base, opts.Breaker, logger), nil
}
