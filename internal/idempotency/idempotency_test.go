package idempotency

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func exerciseStore(t *testing.T, store domain.IdempotencyStore) {
	ctx := context.Background()
	key := uuid.NewString()

	ok, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must be refused")

	orderID, err := store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, orderID, "reserved key is pending")

	require.NoError(t, store.Complete(ctx, key, "order-1"))
	orderID, err = store.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "order-1", orderID)
	ok, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "completed key stays taken")

	orderID, err = store.Lookup(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, orderID)

	require.NoError(t, store.Release(ctx, key))
	ok, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be reserved again")

	var wg sync.WaitGroup
	var winners int32
	concurrent := uuid.NewString()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.Reserve(ctx, concurrent); err == nil && ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, _ := store.Reserve(context.Background(), "k")
	require.True(t, ok)

	require.NoError(t, store.Complete(context.Background(), "k", "order-1"))

	now = now.Add(2 * time.Minute)
	orderID, err := store.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, orderID, "expired key forgets its order")
	ok, _ = store.Reserve(context.Background(), "k")
	assert.True(t, ok, "expired key is free again")
}

func TestRedisStore(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, time.Minute))
}
