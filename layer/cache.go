package layer

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// CachedProvider is a read-through cache in front of another provider.
// Entries live for TTL; failures are not cached so the next run retries.
type CachedProvider struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	fc  *geojson.FeatureCollection
	exp time.Time
}

// NewCachedProvider wraps next with a TTL cache keyed by layer name
func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch returns a cached collection while it is fresh, otherwise fetches and stores it
func (c *CachedProvider) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	c.mu.Lock()
	if e, ok := c.entries[cfg.Name]; ok {
		if c.now().Before(e.exp) {
			c.mu.Unlock()
			return e.fc, nil
		}
		delete(c.entries, cfg.Name)
	}
	c.mu.Unlock()

	fc, err := c.next.Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[cfg.Name] = cacheEntry{fc: fc, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()

	log.Debug().Str("layer", cfg.Name).Int("features", len(fc.Features)).Dur("ttl", c.ttl).Msg("Cached layer")
	return fc, nil
}

// Invalidate drops one layer, or every layer when name is empty
func (c *CachedProvider) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.entries = make(map[string]cacheEntry)
		return
	}
	delete(c.entries, name)
}
