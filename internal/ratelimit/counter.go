package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyCounter is shared quota state keyed by scope and UTC day. Multiple
// orchestrator instances pointing at the same Redis share one budget.
type DailyCounter interface {
	// Take consumes one unit from today's budget. It reports false, without
	// consuming, when the budget is already spent. A limit <= 0 is unlimited.
	Take(ctx context.Context, scope string, limit int, now time.Time) (bool, error)
	// Used returns the units consumed today.
	Used(ctx context.Context, scope string, now time.Time) (int, error)
}

func dayKey(prefix, scope string, now time.Time) string {
	return prefix + scope + ":" + now.UTC().Format("20060102")
}

// RedisCounter is a fixed-window INCR-and-check counter.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "rl:daily:"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

var _ DailyCounter = (*RedisCounter)(nil)

func (c *RedisCounter) Take(ctx context.Context, scope string, limit int, now time.Time) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := dayKey(c.prefix, scope, now)

	// the key outlives its day so late readers still see the final count
	pipe := c.rdb.Pipeline()
	cnt := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if cnt.Val() > int64(limit) {
		if err := c.rdb.Decr(ctx, key).Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (c *RedisCounter) Used(ctx context.Context, scope string, now time.Time) (int, error) {
	n, err := c.rdb.Get(ctx, dayKey(c.prefix, scope, now)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// MemoryCounter is a single-process DailyCounter for tests and local runs.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

var _ DailyCounter = (*MemoryCounter)(nil)

func (c *MemoryCounter) Take(_ context.Context, scope string, limit int, now time.Time) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := dayKey("", scope, now)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[key] >= limit {
		return false, nil
	}
	c.counts[key]++
	return true, nil
}

func (c *MemoryCounter) Used(_ context.Context, scope string, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[dayKey("", scope, now)], nil
}
