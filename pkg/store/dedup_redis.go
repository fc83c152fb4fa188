package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupPrefix = "slackbot:event:"

// RedisDeduper remembers processed webhook event IDs in Redis with a TTL.
// The messaging platform retries deliveries that are not acknowledged fast
// enough, so the same event ID can arrive more than once.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper builds a Redis-backed event deduper.
func NewRedisDeduper(addr, password string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{
		client: redis.NewClient(&redis.Options{
			Addr:     strings.TrimSpace(addr),
			Password: password,
		}),
		ttl:    ttl,
		prefix: defaultDedupPrefix,
	}
}

// NewRedisDeduperFromClient wraps an existing client; used by tests.
func NewRedisDeduperFromClient(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl, prefix: defaultDedupPrefix}
}

// FirstDelivery marks eventID seen and reports whether it was new. SETNX
// makes the check-and-mark atomic across replicas.
func (d *RedisDeduper) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return first, nil
}
