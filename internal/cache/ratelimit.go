// Package cache wraps the Redis client used for rate limiting the public
// registration and cancellation endpoints.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr       string
	Password   string
	RateLimit  int
	RateWindow time.Duration
}

type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(cfg Config) (*RateLimiter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RateLimiter{
		client: rdb,
		limit:  cfg.RateLimit,
		window: cfg.RateWindow,
	}, nil
}

// Allow applies a fixed-window counter per key (phone number or client IP).
// The first hit in a window sets the TTL; hits beyond the limit are denied
// until the window expires. Errors are returned so the caller can decide to
// fail open: a Redis outage must not take registration down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= int64(rl.limit), nil
}

func (rl *RateLimiter) Close() error {
	return rl.client.Close()
}
