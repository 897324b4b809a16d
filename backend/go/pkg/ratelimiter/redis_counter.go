package ratelimiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisWindowCounter is a Quota backed by Redis so that several processes can share
// one ceiling. The key expires with the window, which starts on first use.
type RedisWindowCounter struct {
	client *redis.Client
	key    string
	limit  int
	window time.Duration
}

// NewRedisWindowCounter creates a counter stored under key.
func NewRedisWindowCounter(client *redis.Client, key string, limit int, window time.Duration) *RedisWindowCounter {
	return &RedisWindowCounter{client: client, key: key, limit: limit, window: window}
}

// Available reports whether the window still has room. Redis errors are returned
// together with false so callers fail closed.
func (r *RedisWindowCounter) Available(ctx context.Context) (bool, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return r.limit > 0, nil
	}
	if err != nil {
		return false, fmt.Errorf("read quota %s: %w", r.key, err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return false, fmt.Errorf("parse quota %s: %w", r.key, err)
	}
	return n < r.limit, nil
}

// Record increments the counter, starting a new window when the key is fresh.
func (r *RedisWindowCounter) Record(ctx context.Context) error {
	_, err := r.incr(ctx)
	return err
}

// Allow checks and records in one step. It uses a background context with a
// short timeout so it can satisfy RateLimiter.
func (r *RedisWindowCounter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := r.incr(ctx)
	if err != nil {
		return false
	}
	return n <= int64(r.limit)
}

// incr runs INCR and TTL in one transaction and sets the expiry whenever the key
// has none, so a key left without a TTL by a failed EXPIRE is repaired on the
// next increment.
func (r *RedisWindowCounter) incr(ctx context.Context) (int64, error) {
	var (
		count *redis.IntCmd
		ttl   *redis.DurationCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, r.key)
		ttl = pipe.TTL(ctx, r.key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr quota %s: %w", r.key, err)
	}
	if ttl.Val() < 0 {
		if err := r.client.Expire(ctx, r.key, r.window).Err(); err != nil {
			return count.Val(), fmt.Errorf("expire quota %s: %w", r.key, err)
		}
	}
	return count.Val(), nil
}

// Count returns the number of units consumed in the current window.
func (r *RedisWindowCounter) Count(ctx context.Context) (int, error) {
	val, err := r.client.Get(ctx, r.key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
