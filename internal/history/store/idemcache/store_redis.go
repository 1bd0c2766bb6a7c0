package idemcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"timetrail/internal/history"
)

// DefaultTTL bounds how long a replayed key can be answered from Redis.
// After expiry the postgres unique index still dedupes; the cache only
// saves the round trip for hot retries.
const DefaultTTL = 24 * time.Hour

// Cache is a Redis-backed idempotency cache. It is strictly best-effort:
// every failure mode degrades to "ask the store".
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ history.IdempotencyCache = (*Cache)(nil)

// New constructs a Redis idempotency cache. A zero ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(key string) string {
	return "history:idem:" + key
}

// Lookup returns the cached event for key, or (nil, nil) on a miss.
func (c *Cache) Lookup(ctx context.Context, key string) (*history.Event, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency cache get: %w", err)
	}
	var event history.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		// A corrupt entry is treated as a miss; the store remains authoritative.
		return nil, nil
	}
	return &event, nil
}

// Save stores the event under its idempotency key with the configured TTL.
func (c *Cache) Save(ctx context.Context, key string, event history.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("idempotency cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency cache set: %w", err)
	}
	return nil
}
