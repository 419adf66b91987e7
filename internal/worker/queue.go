package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the subset of the Redis client the workers use.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

const (
	PollTimeout = 1 * time.Second // Must be >= 1s to satisfy Redis
	RetryDelay  = 2 * time.Second
	ErrorDelay  = 3 * time.Second
)

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
