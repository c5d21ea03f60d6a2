package ml

import (
	"context"
	"time"

	"github.com/yourusername/fantasy-edge/internal/models"
)

// CachedAdapter wraps an Adapter with output caching keyed on the exact input vector
type CachedAdapter struct {
	Adapter
	cache *OutputCache
}

// NewCachedAdapter creates a cache-aside wrapper
func NewCachedAdapter(inner Adapter, cache *OutputCache) *CachedAdapter {
	return &CachedAdapter{Adapter: inner, cache: cache}
}

// Predict serves repeated inputs from the cache
func (c *CachedAdapter) Predict(ctx context.Context, features models.FeatureVector) (*models.ModelOutput, error) {
	key := NewCacheKey(c.Name(), c.Version(), features)
	if cached, ok := c.cache.Get(key); ok {
		cached.Latency = 0
		cached.CacheHit = true
		return cached, nil
	}

	started := time.Now()
	out, err := c.Adapter.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	if out.Latency == 0 {
		out.Latency = time.Since(started)
	}
	c.cache.Set(key, out)
	return out, nil
}

// Unload forwards to the wrapped adapter and drops its cached outputs
func (c *CachedAdapter) Unload() {
	if u, ok := c.Adapter.(Unloader); ok {
		u.Unload()
	}
	c.cache.Invalidate(c.Name())
}

// Unwrap returns the wrapped adapter
func (c *CachedAdapter) Unwrap() Adapter {
	return c.Adapter
}
