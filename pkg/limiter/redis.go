// pkg/limiter/redis.go
package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter wraps a redis client as a Counter. INCR and the one-time
// EXPIRE run in a pipeline so initialization stays a single round trip.
func NewRedisCounter(rdb *redis.Client) Counter {
	return &redisCounter{rdb: rdb}
}

func (c *redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
