// Package idempotency backs the Idempotency-Key header on order creation.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const (
	orderKeyPrefix = "idempotency:order:"
	pendingValue   = ""
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.IdempotencyStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, orderKeyPrefix+key, pendingValue, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("could not reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Complete(ctx context.Context, key, orderID string) error {
	if err := r.client.Set(ctx, orderKeyPrefix+key, orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("could not complete idempotency key: %w", err)
	}
	return nil
}

func (r *RedisStore) Lookup(ctx context.Context, key string) (string, error) {
	orderID, err := r.client.Get(ctx, orderKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not look up idempotency key: %w", err)
	}
	return orderID, nil
}

func (r *RedisStore) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, orderKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("could not release idempotency key: %w", err)
	}
	return nil
}
