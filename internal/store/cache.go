package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sentKeyPrefix = "notified:"
	// The cache is a shadow of the notification log, not the authority;
	// entries only need to outlive the reminder windows by a wide margin.
	sentCacheTTL = 24 * time.Hour
)

// SentCache keeps a fast shadow of the notification log in Redis so repeat
// scheduler ticks can skip the database roundtrip for pairs that were already
// handled. Misses fall through to the log; the cache never decides a reminder
// is due, only that it is not.
type SentCache struct {
	client *redis.Client
}

func NewSentCache(opts *redis.Options) *SentCache {
	return &SentCache{client: redis.NewClient(opts)}
}

// NewSentCacheFromClient wraps an existing client; used by tests.
func NewSentCacheFromClient(client *redis.Client) *SentCache {
	return &SentCache{client: client}
}

func (c *SentCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Seen reports whether the (meeting, bucket) key was already marked.
func (c *SentCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, sentKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the key. Failures are tolerable: the log remains the authority.
func (c *SentCache) Mark(ctx context.Context, key string) error {
	return c.client.Set(ctx, sentKeyPrefix+key, 1, sentCacheTTL).Err()
}
