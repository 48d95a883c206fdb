package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter backs the sliding-window admission gate with a Redis sorted
// set per id, the idiomatic Redis rendering of spec.md §4.4's contract:
// ZREMRANGEBYSCORE purges stale entries, ZCARD counts what remains, ZADD
// records a new admission. Grounded on the teacher's own Redis usage
// (ZADD/ZRANGEBYSCORE for its greylisting retry queue) and on
// forgedlabs-mail_sorter's Redis-backed caching layer.
type RedisLimiter struct {
	client *redis.Client
	prefix string

	mu     sync.RWMutex
	limit  int
	window time.Duration
}

// NewRedis returns a RedisLimiter with the given limit L and window W.
func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:", limit: limit, window: window}
}

func (r *RedisLimiter) SetConfig(limit int, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	r.window = window
}

func (r *RedisLimiter) snapshot() (int, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limit, r.window
}

func (r *RedisLimiter) Check(ctx context.Context, id string) (bool, error) {
	limit, window := r.snapshot()
	key := r.prefix + id
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return false, fmt.Errorf("purging rate-limit window for %s: %w", id, err)
	}

	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("counting rate-limit window for %s: %w", id, err)
	}
	if int(count) >= limit {
		return false, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), count)
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		return false, fmt.Errorf("recording rate-limit admission for %s: %w", id, err)
	}
	r.client.Expire(ctx, key, window)

	return true, nil
}

func (r *RedisLimiter) Usage(ctx context.Context, id string) (int, int, time.Duration, error) {
	limit, window := r.snapshot()
	key := r.prefix + id
	cutoff := time.Now().Add(-window).UnixNano()

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return 0, limit, window, fmt.Errorf("purging rate-limit window for %s: %w", id, err)
	}
	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, limit, window, fmt.Errorf("counting rate-limit window for %s: %w", id, err)
	}
	return int(count), limit, window, nil
}
