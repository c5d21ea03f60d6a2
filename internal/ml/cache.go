// Package ml provides caching for model outputs.
package ml

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/fantasy-edge/internal/metrics"
	"github.com/yourusername/fantasy-edge/internal/models"
)

// CacheKey represents a unique key for a cached model output
type CacheKey struct {
	Model        string
	ModelVersion string
	FeatureHash  uint64
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%016x", k.Model, k.ModelVersion, k.FeatureHash)
}

// NewCacheKey hashes the feature vector bit-exactly
func NewCacheKey(model, version string, features models.FeatureVector) CacheKey {
	d := xxhash.New()
	var buf [8]byte
	for _, v := range features {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	return CacheKey{Model: model, ModelVersion: version, FeatureHash: d.Sum64()}
}

// OutputCache provides in-memory caching for model outputs
type OutputCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewOutputCache creates a new output cache
func NewOutputCache(ttl time.Duration, maxSize int) *OutputCache {
	return &OutputCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached output
func (oc *OutputCache) Get(key CacheKey) (*models.ModelOutput, bool) {
	result, found := oc.cache.Get(key.String())

	oc.mu.Lock()
	if found {
		oc.hitCount++
	} else {
		oc.missCount++
	}
	ratio := oc.ratioLocked()
	oc.mu.Unlock()
	metrics.UpdateCacheHitRatio(ratio)

	if !found {
		return nil, false
	}
	out, ok := result.(models.ModelOutput)
	if !ok {
		return nil, false
	}
	return &out, true
}

// Set stores an output in cache
func (oc *OutputCache) Set(key CacheKey, output *models.ModelOutput) {
	if oc.maxSize > 0 && oc.cache.ItemCount() >= oc.maxSize {
		oc.cache.DeleteExpired()
		if oc.cache.ItemCount() >= oc.maxSize {
			return
		}
	}
	oc.cache.Set(key.String(), *output, oc.ttl)
}

// Invalidate removes all cache entries for a model
func (oc *OutputCache) Invalidate(model string) {
	prefix := model + "|"
	for k := range oc.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			oc.cache.Delete(k)
		}
	}
}

// Clear flushes the entire cache
func (oc *OutputCache) Clear() {
	oc.cache.Flush()

	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.hitCount = 0
	oc.missCount = 0
}

// Stats returns cache statistics
func (oc *OutputCache) Stats() (hits, misses uint64, ratio float64) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.hitCount, oc.missCount, oc.ratioLocked()
}

func (oc *OutputCache) ratioLocked() float64 {
	total := oc.hitCount + oc.missCount
	if total == 0 {
		return 0
	}
	return float64(oc.hitCount) / float64(total)
}

// ItemCount returns the number of items in cache
func (oc *OutputCache) ItemCount() int {
	return oc.cache.ItemCount()
}
