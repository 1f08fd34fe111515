package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const costKeyPrefix = "project:cost:"

// Cache keeps recently recalculated project costs in Redis for the read path.
// All methods are nil-safe and best-effort; a cold or unreachable cache only
// costs a recomputation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cost cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func costKey(projectID int64) string {
	return fmt.Sprintf("%s%d", costKeyPrefix, projectID)
}

// GetCost returns the cached cost and whether it was present.
func (c *Cache) GetCost(ctx context.Context, projectID int64) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	v, err := c.client.Get(ctx, costKey(projectID)).Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// SetCost stores a freshly recalculated cost.
func (c *Cache) SetCost(ctx context.Context, projectID int64, cost float64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, costKey(projectID), cost, c.ttl).Err()
}

// Invalidate drops a project's cached cost after its inputs change.
func (c *Cache) Invalidate(ctx context.Context, projectID int64) {
	if c == nil || c.client == nil {
		return
	}
	err := c.client.Del(ctx, costKey(projectID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return
	}
}
