package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects the client shared by the network cap, the API rate
// limiter and the warmup lock.
func OpenRedis(c config.RedisConfig) (*redis.Client, error) {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: dial,
	})
	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", c.Addr, err)
	}
	return rdb, nil
}
