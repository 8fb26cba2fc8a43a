package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fingerprint:"

// RedisIndex implements Index over a Redis keyed store.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex creates a Redis-backed index.
func NewRedisIndex(addr, password string) *RedisIndex {
	return &RedisIndex{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Lookup returns the record id registered for a fingerprint.
func (i *RedisIndex) Lookup(ctx context.Context, fingerprint string) (uuid.UUID, error) {
	val, err := i.client.Get(ctx, redisKeyPrefix+fingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNotIndexed
		}
		return uuid.Nil, fmt.Errorf("redis lookup failed: %w", err)
	}

	recordID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt index entry for %s: %w", fingerprint, err)
	}
	return recordID, nil
}

// Register maps a fingerprint to a record id. Last write wins.
func (i *RedisIndex) Register(ctx context.Context, fingerprint string, recordID uuid.UUID) error {
	if err := i.client.Set(ctx, redisKeyPrefix+fingerprint, recordID.String(), 0).Err(); err != nil {
		return fmt.Errorf("redis register failed: %w", err)
	}
	return nil
}

// Remove deletes a fingerprint entry.
func (i *RedisIndex) Remove(ctx context.Context, fingerprint string) error {
	if err := i.client.Del(ctx, redisKeyPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("redis remove failed: %w", err)
	}
	return nil
}
