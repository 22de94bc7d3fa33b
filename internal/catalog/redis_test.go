package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/mocks"
	dbconfig "github.com/Kaushik-110000/eduapp/pkg/database"
)

func newTestRedisCache(t *testing.T, mr *miniredis.Miniredis, prefix string, ttl time.Duration) *RedisCache {
	t.Helper()
	cache, err := NewRedisCache(context.Background(), mr.Addr(), "", 0, prefix, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestRedisCache_RememberAndExpire(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := newTestRedisCache(t, mr, "test:", time.Minute)

	hit, err := cache.Exists(ctx, "s1")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Remember(ctx, "s1"))
	require.True(t, mr.Exists("test:s1"))
	require.Equal(t, time.Minute, mr.TTL("test:s1"))

	hit, err = cache.Exists(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)

	mr.FastForward(time.Minute + time.Second)

	hit, err = cache.Exists(ctx, "s1")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestRedisCache_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, cache.Remember(context.Background(), "s1"))
	require.True(t, mr.Exists("eduapp:session:s1"))
	require.Equal(t, 5*time.Minute, mr.TTL("eduapp:session:s1"))
}

func TestRedisCache_ServerErrors(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := newTestRedisCache(t, mr, "test:", time.Minute)

	mr.SetError("LOADING dataset in memory")
	_, err := cache.Exists(ctx, "s1")
	require.Error(t, err)
	require.Error(t, cache.Remember(ctx, "s1"))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), addr, "", 0, "", 0)
	require.Error(t, err)
}

func TestCachedCatalog_WithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	ctrl := gomock.NewController(t)
	next := mocks.NewMockCatalog(ctrl)
	next.EXPECT().SessionExists(gomock.Any(), "s1").Return(true, nil).Times(2)
	next.EXPECT().SessionExists(gomock.Any(), "ghost").Return(false, nil).Times(2)

	c := NewCachedCatalog(next, newTestRedisCache(t, mr, "test:", time.Minute), zap.NewNop())

	// first lookup reaches the catalog, the next two are served by redis
	for i := 0; i < 3; i++ {
		exists, err := c.SessionExists(ctx, "s1")
		require.NoError(t, err)
		require.True(t, exists)
	}
	require.True(t, mr.Exists("test:s1"))

	for i := 0; i < 2; i++ {
		exists, err := c.SessionExists(ctx, "ghost")
		require.NoError(t, err)
		require.False(t, exists)
	}
	require.False(t, mr.Exists("test:ghost"))

	// an unavailable cache falls through to the catalog
	mr.SetError("LOADING dataset in memory")
	exists, err := c.SessionExists(ctx, "s1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestNew_SQLiteStackWithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "catalog.db")

	c, err := New(ctx, Options{
		Driver:       DriverSQLite,
		SQLite:       cfg,
		RedisEnabled: true,
		RedisAddr:    mr.Addr(),
		CachePrefix:  "stack:",
		CacheTTL:     time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	session := &VideoSession{CourseID: "c", URL: "u"}
	require.NoError(t, c.(SessionWriter).RegisterSession(ctx, session))
	require.True(t, mr.Exists("stack:"+session.ID))

	exists, err := c.SessionExists(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, c.Close())
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "catalog.db")

	_, err := New(context.Background(), Options{Driver: DriverSQLite, SQLite: cfg, RedisEnabled: true, RedisAddr: addr}, zap.NewNop())
	require.Error(t, err)
}
