package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a versioned Redis JSON cache for stock listings. Keys embed a
// version counter; Invalidate bumps the counter so every cached listing
// expires at once without scanning the keyspace.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache helper. A nil client degrades to
// pass-through.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "pos:stock"}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.prefix+":ver").Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

func (c *Cache) key(version int64, signature string) string {
	return fmt.Sprintf("%s:v%d:%s", c.prefix, version, signature)
}

// Get unmarshals a cached listing for the query signature, reporting
// whether it existed.
func (c *Cache) Get(ctx context.Context, signature string, dst any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	version, err := c.version(ctx)
	if err != nil {
		return false, err
	}
	data, err := c.client.Get(ctx, c.key(version, signature)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a listing under the current version with the configured TTL.
func (c *Cache) Set(ctx context.Context, signature string, v any) error {
	if c == nil || c.client == nil {
		return nil
	}
	version, err := c.version(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.client.Set(ctx, c.key(version, signature), data, ttl).Err()
}

// Invalidate bumps the version counter, orphaning every cached listing.
// Old entries fall out on their own TTL.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.prefix+":ver").Err()
}
