package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPingResult is the minimal return type of a Redis client's Ping.
type RedisPingResult interface{ Err() error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface{ Ping(ctx context.Context) RedisPingResult }

type redisAdapter struct{ c *redis.Client }

func (a redisAdapter) Ping(ctx context.Context) RedisPingResult { return a.c.Ping(ctx) }

// AdaptRedis wraps a go-redis client for BuildReadinessCheck. A nil client
// yields a nil RedisClient.
func AdaptRedis(c *redis.Client) RedisClient {
	if c == nil {
		return nil
	}
	return redisAdapter{c: c}
}

// BuildReadinessCheck returns the redis readiness check, or nil when Redis
// is not configured so the probe is skipped entirely.
func BuildReadinessCheck(rdb RedisClient) func(ctx context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("op=readiness.redis: %w", err)
		}
		return nil
	}
}
