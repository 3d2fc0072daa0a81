package geocoding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/sync/singleflight"
)

// Cache maps exact address strings to positions. It is safe for concurrent use and lives
// as long as its owner; entries never expire on their own.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.Coordinates
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.Coordinates)}
}

func (c *Cache) Get(address string) (models.Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coords, ok := c.entries[address]

	return coords, ok
}

func (c *Cache) Put(address string, coords models.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[address] = coords
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
}

// CachedProvider answers from the cache and falls back to the wrapped provider on a miss.
// Successful lookups are cached, failures are not. Concurrent misses for the same address
// share one provider call.
type CachedProvider struct {
	provider Provider
	cache    *Cache
	name     string
	group    singleflight.Group
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewCachedProvider wraps provider with cache. name labels the provider latency metric.
func NewCachedProvider(provider Provider, cache *Cache, name string, m *metrics.Metrics, log *slog.Logger) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		name:     name,
		metrics:  m,
		log:      log,
	}
}

func (cp *CachedProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	if coords, ok := cp.cache.Get(address); ok {
		cp.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return &coords, nil
	}
	cp.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	value, err, shared := cp.group.Do(address, func() (any, error) {
		start := time.Now()
		coords, err := cp.provider.Geocode(ctx, address)
		cp.metrics.GeocodeSeconds.WithLabelValues(cp.name).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if coords == nil {
			return nil, ErrNoResult
		}
		cp.cache.Put(address, *coords)

		return *coords, nil
	})
	if err != nil {
		cp.log.DebugContext(ctx, "Geocoding failed", "address", address, "error", err)
		return nil, err
	}
	if shared {
		cp.log.DebugContext(ctx, "Geocode result shared between concurrent lookups", "address", address)
	}

	coords, _ := value.(models.Coordinates)

	return &coords, nil
}

// Cache returns the cache backing the provider.
func (cp *CachedProvider) Cache() *Cache {
	return cp.cache
}
