package ml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/fantasy-edge/internal/logger"
	"github.com/yourusername/fantasy-edge/internal/metrics"
)

// Registry owns every loaded adapter for the lifetime of the process. It is
// constructed at start-up and passed to the components that need adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	loader   ArtifactLoader
	cache    *OutputCache
	logger   *logger.InferenceLogger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithOutputCache wraps every registered adapter with a shared output cache
func WithOutputCache(cache *OutputCache) RegistryOption {
	return func(r *Registry) {
		r.cache = cache
	}
}

// NewRegistry creates an empty registry. loader may be nil when only
// pre-built adapters are registered.
func NewRegistry(loader ArtifactLoader, log *logrus.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		loader:   loader,
		logger:   logger.NewInferenceLogger(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadAll loads the named artifacts and registers an adapter for each
func (r *Registry) LoadAll(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := r.load(ctx, name, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload re-reads a model's artifact and swaps the adapter in place
func (r *Registry) Reload(ctx context.Context, name string) error {
	return r.load(ctx, name, true)
}

func (r *Registry) load(ctx context.Context, name string, replace bool) error {
	if r.loader == nil {
		return fmt.Errorf("%w: %s: no artifact loader configured", ErrModelUnavailable, name)
	}
	artifact, err := r.loader.Load(ctx, name)
	if err != nil {
		return err
	}
	adapter, err := NewAdapter(artifact)
	if err != nil {
		return err
	}

	r.logger.LogModelLoaded(artifact.Name, string(artifact.Family), artifact.Version, artifact.InputSize)
	if replace {
		r.swap(adapter)
		return nil
	}
	return r.Register(adapter)
}

// Register adds a pre-built adapter
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[adapter.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, adapter.Name())
	}
	r.adapters[adapter.Name()] = r.wrap(adapter)
	metrics.UpdateModelsLoaded(len(r.adapters))
	return nil
}

func (r *Registry) swap(adapter Adapter) {
	r.mu.Lock()
	old, existed := r.adapters[adapter.Name()]
	r.adapters[adapter.Name()] = r.wrap(adapter)
	count := len(r.adapters)
	r.mu.Unlock()

	if existed {
		release(old)
	}
	metrics.UpdateModelsLoaded(count)
}

func (r *Registry) wrap(adapter Adapter) Adapter {
	if r.cache == nil {
		return adapter
	}
	r.cache.Invalidate(adapter.Name())
	return NewCachedAdapter(adapter, r.cache)
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return adapter, nil
}

// Adapters returns a snapshot of all adapters ordered by name
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Unload removes an adapter and releases its resources
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	adapter, ok := r.adapters[name]
	delete(r.adapters, name)
	count := len(r.adapters)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	metrics.UpdateModelsLoaded(count)
	return release(adapter)
}

// Close unloads every adapter
func (r *Registry) Close() error {
	r.mu.Lock()
	adapters := r.adapters
	r.adapters = make(map[string]Adapter)
	r.mu.Unlock()

	var errs []error
	for _, a := range adapters {
		if err := release(a); err != nil {
			errs = append(errs, err)
		}
	}
	metrics.UpdateModelsLoaded(0)
	return errors.Join(errs...)
}

func release(adapter Adapter) error {
	if u, ok := adapter.(Unloader); ok {
		u.Unload()
	}
	if c, ok := adapter.(*CachedAdapter); ok {
		adapter = c.Unwrap()
	}
	if closer, ok := adapter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
