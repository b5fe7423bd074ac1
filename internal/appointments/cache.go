package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MonthCache keeps month-view day counts in Redis so calendar renders
// do not hit Postgres on every navigation. It is an optional
// accelerator: a nil cache or an unreachable Redis degrades to direct
// computation, never to a failed request.
type MonthCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMonthCache creates a cache on an existing Redis client.
func NewMonthCache(client *redis.Client, ttl time.Duration) *MonthCache {
	if client == nil {
		panic("appointments: redis client required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MonthCache{client: client, ttl: ttl}
}

func monthCacheKey(providerID, monthKey string) string {
	return fmt.Sprintf("calendar:month:%s:%s", providerID, monthKey)
}

// Get returns the cached day counts for a provider month, if present.
func (c *MonthCache) Get(ctx context.Context, providerID, monthKey string) (map[string]int, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, monthCacheKey(providerID, monthKey)).Bytes()
	if err != nil {
		return nil, false
	}
	var counts map[string]int
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false
	}
	return counts, true
}

// Set stores the day counts for a provider month.
func (c *MonthCache) Set(ctx context.Context, providerID, monthKey string, counts map[string]int) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, monthCacheKey(providerID, monthKey), raw, c.ttl).Err()
}

// Invalidate drops the cached months touched by a write.
func (c *MonthCache) Invalidate(ctx context.Context, providerID string, monthKeys ...string) {
	if c == nil || len(monthKeys) == 0 {
		return
	}
	keys := make([]string, 0, len(monthKeys))
	seen := make(map[string]struct{}, len(monthKeys))
	for _, mk := range monthKeys {
		if _, dup := seen[mk]; dup {
			continue
		}
		seen[mk] = struct{}{}
		keys = append(keys, monthCacheKey(providerID, mk))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
