package loanpool

import (
	"context"
	"time"

	"github.com/thegator/loansim/pkg/redis"
)

// defaultTTL keeps processed pools warm for a day; the scheduler's refresh
// job re-validates them well inside that window.
const defaultTTL = 24 * time.Hour

// Cache stores processed pool rows in Redis, keyed by dataset tag. With
// Redis disabled every lookup is a miss, which callers treat as "load from
// source".
type Cache struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewCache creates a pool cache on top of the shared Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		cache: redis.NewCache(client, "loansim:pool"),
		ttl:   defaultTTL,
	}
}

// Get returns the cached rows for a dataset tag, if present.
func (c *Cache) Get(ctx context.Context, dataset string) ([]Row, bool, error) {
	var rows []Row
	hit, err := c.cache.Get(ctx, dataset, &rows)
	if err != nil || !hit {
		return nil, false, err
	}
	return rows, true, nil
}

// Set stores the rows for a dataset tag.
func (c *Cache) Set(ctx context.Context, dataset string, rows []Row) error {
	return c.cache.Set(ctx, dataset, rows, c.ttl)
}

// Invalidate drops the cached rows for a dataset tag.
func (c *Cache) Invalidate(ctx context.Context, dataset string) error {
	return c.cache.Delete(ctx, dataset)
}
