package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
)

func openCacheTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CacheEntry{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestDatabaseStoreIncrementKeepsFixedWindow(t *testing.T) {
	now := time.Now()
	store := NewDatabaseStore(openCacheTestDB(t)).WithClock(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	// Steady traffic inside the window must not push the expiry out.
	now = now.Add(40 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 20*time.Second, ttl)

	// Once the window lapses the counter starts over.
	now = now.Add(30 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStoreExpiredGet(t *testing.T) {
	now := time.Now()
	store := NewDatabaseStore(openCacheTestDB(t)).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "gone", []byte("x"), time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := store.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	now := time.Now()
	store := NewDatabaseStore(openCacheTestDB(t)).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stale", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "fresh", []byte("b"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("c"), 0))

	now = now.Add(30 * time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	_, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}
