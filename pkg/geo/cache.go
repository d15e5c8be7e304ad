package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedLocator keeps lookups in Redis, including misses, for ttl.
type CachedLocator struct {
	next  Locator
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedLocator(next Locator, client *redis.Client, ttl time.Duration) *CachedLocator {
	return &CachedLocator{next: next, redis: client, ttl: ttl}
}

func cacheKey(ip string) string {
	return fmt.Sprintf("geo:ip:%s", ip)
}

func (c *CachedLocator) Lookup(ctx context.Context, ip string) (*Location, error) {
	if !Routable(ip) {
		return nil, nil
	}

	// A Redis outage degrades to uncached lookups.
	if raw, err := c.redis.Get(ctx, cacheKey(ip)).Bytes(); err == nil {
		var loc *Location
		if json.Unmarshal(raw, &loc) == nil {
			return loc, nil
		}
	}

	loc, err := c.next.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		_ = c.redis.Set(ctx, cacheKey(ip), payload, c.ttl).Err()
	}
	return loc, nil
}
