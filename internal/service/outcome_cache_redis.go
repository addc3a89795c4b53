package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOutcomeCache shares replayed outcomes across coordinator instances.
// Entries carry their own short TTL via PX, independent of record durability.
type RedisOutcomeCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisOutcomeCache(client redis.UniversalClient, prefix string) *RedisOutcomeCache {
	if prefix == "" {
		prefix = "idem:outcome"
	}
	return &RedisOutcomeCache{client: client, prefix: prefix}
}

func (c *RedisOutcomeCache) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *RedisOutcomeCache) Get(ctx context.Context, key string) (Outcome, bool, error) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, err
	}
	var outcome Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return Outcome{}, false, fmt.Errorf("decode cached outcome: %w", err)
	}
	return outcome, true, nil
}

func (c *RedisOutcomeCache) Put(ctx context.Context, key string, outcome Outcome, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode cached outcome: %w", err)
	}
	return c.client.Set(ctx, c.redisKey(key), raw, ttl).Err()
}
