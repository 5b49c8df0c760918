package cartstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/tableside/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFallback(t *testing.T) (*FallbackStore, *RedisStore, *MemoryStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	primary := NewRedisStore(client, time.Hour)
	local := setupStore(t, 0, 0)
	return NewFallbackStore(primary, local), primary, local, mr
}

func TestFallbackStore_UsesPrimaryWhenHealthy(t *testing.T) {
	store, primary, local, _ := setupFallback(t)
	ctx := context.Background()
	key := domain.NewCartKey(7, "T1")

	require.NoError(t, store.Save(ctx, key, newTestCart(key)))

	_, err := primary.Load(ctx, key)
	assert.NoError(t, err)
	assert.Equal(t, 0, local.Len())
}

func TestFallbackStore_SurvivesPrimaryOutage(t *testing.T) {
	store, primary, local, mr := setupFallback(t)
	ctx := context.Background()
	key := domain.NewCartKey(7, "T1")
	cart := newTestCart(key)

	mr.Close()

	require.NoError(t, store.Save(ctx, key, cart))
	assert.Equal(t, 1, local.Len())

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, cart.OrderID, loaded.OrderID)

	require.NoError(t, mr.Restart())

	// still served from the local copy until the next save
	loaded, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, cart.OrderID, loaded.OrderID)

	require.NoError(t, store.Save(ctx, key, loaded))
	assert.Equal(t, 0, local.Len())
	_, err = primary.Load(ctx, key)
	assert.NoError(t, err)
}

func TestFallbackStore_DeleteRemovesBoth(t *testing.T) {
	store, primary, local, _ := setupFallback(t)
	ctx := context.Background()
	key := domain.NewCartKey(7, "T1")

	require.NoError(t, primary.Save(ctx, key, newTestCart(key)))
	require.NoError(t, local.Save(ctx, key, newTestCart(key)))

	require.NoError(t, store.Delete(ctx, key))

	_, err := store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrCartNotFound)
}
