package cartstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/tableside/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, ttl)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return store, mr, cleanup
}

func TestRedisStore_LoadMissing(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	cart, err := store.Load(context.Background(), domain.NewCartKey(1, ""))
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	ctx := context.Background()
	key := domain.NewCartKey(7, "T3")
	cart := newTestCart(key)

	require.NoError(t, store.Save(ctx, key, cart))
	assert.True(t, mr.Exists("cart:7:T3"))
	assert.Equal(t, time.Duration(0), mr.TTL("cart:7:T3"))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, cart.OrderID, loaded.OrderID)
	assert.Equal(t, int64(7), loaded.UserID)
	assert.Equal(t, "T3", loaded.TableID)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Soup", loaded.Items[0].ItemName)
	assert.True(t, decimal.RequireFromString("5.00").Equal(loaded.Items[0].UnitPrice))
	assert.True(t, cart.TotalAmount.Equal(loaded.TotalAmount))
}

func TestRedisStore_SaveOverwrites(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	ctx := context.Background()
	key := domain.NewCartKey(1, "")
	require.NoError(t, store.Save(ctx, key, newTestCart(key)))

	empty := domain.NewCart(key, time.Now())
	require.NoError(t, store.Save(ctx, key, empty))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
	assert.Equal(t, empty.OrderID, loaded.OrderID)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 30*time.Minute)
	defer cleanup()

	ctx := context.Background()
	key := domain.NewCartKey(1, "")
	require.NoError(t, store.Save(ctx, key, newTestCart(key)))

	assert.Equal(t, 30*time.Minute, mr.TTL(key.String()))

	mr.FastForward(31 * time.Minute)
	_, err := store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	ctx := context.Background()
	key := domain.NewCartKey(1, "")
	require.NoError(t, store.Save(ctx, key, newTestCart(key)))

	require.NoError(t, store.Delete(ctx, key))
	assert.False(t, mr.Exists(key.String()))

	assert.NoError(t, store.Delete(ctx, key))
}

func TestRedisStore_CorruptedPayload(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	key := domain.NewCartKey(1, "")
	require.NoError(t, mr.Set(key.String(), "{not json"))

	_, err := store.Load(context.Background(), key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCartNotFound)
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	mr.Close()
	_, err := store.Load(context.Background(), domain.NewCartKey(1, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get failed")
}
