// Package rediscache stores reverse-geocoding results in Redis so that
// repeated lookups of the same spot skip the rate-limited provider.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baxperience/baxperience/internal/location"
)

const (
	defaultTTL = 24 * time.Hour
	keyPrefix  = "bax:geocode:"
)

// Cache implements location.Cache on top of a Redis client.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ location.Cache = (*Cache)(nil)

// New constructs a Cache. A non-positive ttl means 24 hours.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return keyPrefix + key
}

// Get retrieves a cached place.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, key string) (*location.Place, error) {
	val, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", key, err)
	}

	var place location.Place
	if err := json.Unmarshal(val, &place); err != nil {
		return nil, fmt.Errorf("unmarshaling cached place for %s: %w", key, err)
	}

	return &place, nil
}

// Set stores a place with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, place *location.Place) error {
	if place == nil {
		return nil
	}

	b, err := json.Marshal(place)
	if err != nil {
		return fmt.Errorf("marshaling place for %s: %w", key, err)
	}

	if err := c.client.Set(ctx, redisKey(key), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", key, err)
	}

	return nil
}

// Delete removes the cached entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s: %w", key, err)
	}
	return nil
}
