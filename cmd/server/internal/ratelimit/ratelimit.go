package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter gates order placement per caller.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Compile-time check to ensure RedisLimiter implements Limiter
var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter is a fixed-window counter: INCR + EXPIRE in one pipeline.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// Nop allows everything; used when rate limiting is disabled.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }
