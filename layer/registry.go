package layer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kuanb/zonecheck/metrics"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds parallel provider calls in Resolve
const maxConcurrentFetches = 4

// Registry holds validated layer configs in registration order and the
// provider used to resolve them. Fetching and caching of layer content is
// left to the provider; the registry only remembers the index it built for
// the last collection each layer returned.
type Registry struct {
	provider Provider

	mu      sync.RWMutex
	configs []Config
	byName  map[string]int

	builtMu sync.Mutex
	built   map[string]builtLayer
}

// builtLayer is reused while the provider keeps returning the same collection
type builtLayer struct {
	fc            *geojson.FeatureCollection
	geometryField string
	layer         *Layer
}

// NewRegistry validates and registers every config
func NewRegistry(p Provider, configs ...Config) (*Registry, error) {
	r := &Registry{provider: p, byName: make(map[string]int), built: make(map[string]builtLayer)}
	for _, c := range configs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a layer after validating its config
func (r *Registry) Register(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[c.Name]; dup {
		return fmt.Errorf("%w: duplicate layer name %q", ErrInvalidConfig, c.Name)
	}
	r.byName[c.Name] = len(r.configs)
	r.configs = append(r.configs, c)
	return nil
}

// Configs returns a copy of the registered configs in registration order
func (r *Registry) Configs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Config(nil), r.configs...)
}

// Select returns the configs for the given names in registration order.
// No names selects every layer.
func (r *Registry) Select(names ...string) ([]Config, error) {
	if len(names) == 0 {
		return r.Configs(), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, n)
		}
		want[n] = struct{}{}
	}
	out := make([]Config, 0, len(want))
	for _, c := range r.configs {
		if _, ok := want[c.Name]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Resolved is the outcome of one Resolve call. A layer is either in Layers
// or has the reason it is unavailable in Errors.
type Resolved struct {
	Layers map[string]*Layer
	Errors map[string]error
}

// Layer returns the resolved layer or the reason it is unavailable
func (r Resolved) Layer(name string) (*Layer, error) {
	if l, ok := r.Layers[name]; ok && l != nil {
		return l, nil
	}
	if err, ok := r.Errors[name]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s was not resolved", ErrNoFeatures, name)
}

// Resolve fetches and indexes the given layers concurrently. A failing
// layer is recorded in Errors and never stops the others.
func (r *Registry) Resolve(ctx context.Context, configs []Config) Resolved {
	out := Resolved{
		Layers: make(map[string]*Layer, len(configs)),
		Errors: make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, cfg := range configs {
		g.Go(func() error {
			start := time.Now()
			l, err := r.resolveOne(gctx, cfg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.LayerFetchFailTotal.WithLabelValues(cfg.Name).Inc()
				log.Warn().Err(err).Str("layer", cfg.Name).Msg("Layer unavailable")
				out.Errors[cfg.Name] = err
				return nil
			}
			log.Debug().
				Str("layer", cfg.Name).
				Int("features", len(l.Features)).
				Dur("duration", time.Since(start)).
				Msg("Layer resolved")
			out.Layers[cfg.Name] = l
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Registry) resolveOne(ctx context.Context, cfg Config) (l *Layer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			l, err = nil, fmt.Errorf("provider panicked for layer %s: %v", cfg.Name, rec)
		}
	}()
	if r.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured for %s", ErrNoFeatures, cfg.Name)
	}
	fc, err := r.provider.Fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return r.build(cfg, fc)
}

// build indexes fc, or returns the layer already built from the same collection
func (r *Registry) build(cfg Config, fc *geojson.FeatureCollection) (*Layer, error) {
	r.builtMu.Lock()
	b, ok := r.built[cfg.Name]
	r.builtMu.Unlock()
	if ok && fc != nil && b.fc == fc && b.geometryField == cfg.GeometryField {
		l := *b.layer
		l.Config = cfg
		return &l, nil
	}

	l, err := NewLayer(cfg, fc)
	if err != nil {
		return nil, err
	}
	r.builtMu.Lock()
	r.built[cfg.Name] = builtLayer{fc: fc, geometryField: cfg.GeometryField, layer: l}
	r.builtMu.Unlock()
	return l, nil
}
