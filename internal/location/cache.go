package location

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Cache stores reverse-geocoding results by grid cell key.
// Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Place, error)
	Set(ctx context.Context, key string, place *Place) error
}

// DefaultCacheGridSize is the default cache cell size in degrees (~11m).
const DefaultCacheGridSize = 0.0001

// GridKey quantizes a coordinate to a cache cell.
// Format: {gridLat},{gridLon} with four decimals.
func GridKey(c Coordinate, gridSize float64) string {
	if gridSize <= 0 {
		gridSize = DefaultCacheGridSize
	}
	gridLat := math.Floor(c.Latitude/gridSize) * gridSize
	gridLon := math.Floor(c.Longitude/gridSize) * gridSize
	return fmt.Sprintf("%.4f,%.4f", gridLat, gridLon)
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	entries     map[string]cachedPlace
	lastCleanup time.Time
}

type cachedPlace struct {
	place     Place
	expiresAt time.Time
}

// NewMemoryCache creates a cache keeping entries for ttl (default: 24 hours).
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryCache{
		ttl:             ttl,
		cleanupInterval: 10 * time.Minute,
		now:             time.Now,
		entries:         make(map[string]cachedPlace),
	}
}

// Get returns a copy of the cached place, or nil when absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) (*Place, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, nil
	}
	p := entry.place
	return &p, nil
}

// Set stores a copy of place under key.
func (c *MemoryCache) Set(_ context.Context, key string, place *Place) error {
	if place == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cachedPlace{place: *place, expiresAt: now.Add(c.ttl)}
	c.cleanupIfNeeded(now)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupIfNeeded drops expired entries. Caller holds the write lock.
func (c *MemoryCache) cleanupIfNeeded(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
