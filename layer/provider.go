package layer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Provider supplies the raw feature collection of a configured layer.
// Implementations own network access, authentication and caching.
type Provider interface {
	Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error)

// Fetch calls f(ctx, cfg)
func (f ProviderFunc) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	return f(ctx, cfg)
}

// SourceProvider dispatches on Config.Source.Type
type SourceProvider struct {
	providers map[string]Provider
}

// NewSourceProvider creates an empty dispatcher
func NewSourceProvider() *SourceProvider {
	return &SourceProvider{providers: make(map[string]Provider)}
}

// Handle registers the provider used for a source type
func (s *SourceProvider) Handle(sourceType string, p Provider) *SourceProvider {
	s.providers[sourceType] = p
	return s
}

// Fetch forwards to the provider registered for the layer's source type
func (s *SourceProvider) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	p, ok := s.providers[cfg.Source.Type]
	if !ok {
		return nil, fmt.Errorf("no provider for source type %q (layer %s)", cfg.Source.Type, cfg.Name)
	}
	return p.Fetch(ctx, cfg)
}

// FileProvider reads GeoJSON files, resolving relative paths against BaseDir
type FileProvider struct {
	BaseDir string
}

// Fetch reads and decodes the layer's GeoJSON file
func (p FileProvider) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := cfg.Source.Path
	if !filepath.IsAbs(path) && p.BaseDir != "" {
		path = filepath.Join(p.BaseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s from %s: %w", cfg.Name, path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON for layer %s: %w", cfg.Name, err)
	}
	return fc, nil
}

// StaticProvider serves in-memory collections keyed by layer name
type StaticProvider struct {
	mu          sync.RWMutex
	collections map[string]*geojson.FeatureCollection
}

// NewStaticProvider creates a provider preloaded with collections
func NewStaticProvider(collections map[string]*geojson.FeatureCollection) *StaticProvider {
	c := make(map[string]*geojson.FeatureCollection, len(collections))
	for k, v := range collections {
		c[k] = v
	}
	return &StaticProvider{collections: c}
}

// Set replaces the collection served for a layer
func (p *StaticProvider) Set(name string, fc *geojson.FeatureCollection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collections[name] = fc
}

// Fetch returns the stored collection or ErrNoFeatures
func (p *StaticProvider) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fc, ok := p.collections[cfg.Name]
	if !ok || fc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFeatures, cfg.Name)
	}
	return fc, nil
}
