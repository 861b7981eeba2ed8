package distlock

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/util"
	"github.com/redis/go-redis/v9"
)

// Locker is a cross-process mutual exclusion primitive.
type Locker interface {
	// Acquire returns false without blocking when another owner holds the lock.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLock is SET NX with a TTL and a ULID owner value, so a lock that
// expired and was taken by someone else is never released by us.
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    "lock:" + key,
		value:  util.New(),
		ttl:    ttl,
	}
}

var _ Locker = (*RedisLock)(nil)

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// Noop always acquires. Used when no Redis is configured.
type Noop struct{}

func (Noop) Acquire(context.Context) (bool, error) { return true, nil }
func (Noop) Release(context.Context) error         { return nil }
