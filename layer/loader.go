package layer

import (
	"fmt"

	"kuanb/zonecheck/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// NewLayer builds an indexed layer from a provider's feature collection.
// Only polygonal features are kept; rings are closed if the provider left them open.
func NewLayer(cfg Config, fc *geojson.FeatureCollection) (*Layer, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFeatures, cfg.Name)
	}

	features := make([]Feature, 0, len(fc.Features))
	var dropped int
	for i, f := range fc.Features {
		g, err := featureGeometry(cfg, f)
		if err != nil {
			log.Debug().Err(err).Str("layer", cfg.Name).Int("feature", i).Msg("Skipping feature")
			dropped++
			continue
		}
		mp := toMultiPolygon(g)
		if len(mp) == 0 {
			dropped++
			continue
		}
		props := f.Properties
		if props == nil {
			props = geojson.Properties{}
		}
		features = append(features, Feature{
			Index:      len(features),
			Geometry:   mp,
			Bound:      mp.Bound(),
			Properties: props,
		})
	}
	if dropped > 0 {
		log.Warn().
			Str("layer", cfg.Name).
			Int("dropped", dropped).
			Int("kept", len(features)).
			Msg("Dropped non-polygon features")
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFeatures, cfg.Name)
	}

	// Build RTree spatial index for features
	rtree := geom.NewRTree()
	for i := range features {
		rtree.Insert(i, features[i].Bound)
	}
	log.Debug().Str("layer", cfg.Name).Int("entries", rtree.Size()).Msg("Built RTree")

	return &Layer{
		Config:   cfg,
		Features: features,
		RTree:    rtree,
	}, nil
}

func featureGeometry(cfg Config, f *geojson.Feature) (orb.Geometry, error) {
	if cfg.GeometryField == "" {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature has no geometry")
		}
		return f.Geometry, nil
	}
	raw, ok := f.Properties[cfg.GeometryField].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("property %s holds no WKT", cfg.GeometryField)
	}
	g, err := wkt.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse WKT in %s: %w", cfg.GeometryField, err)
	}
	return g, nil
}

// toMultiPolygon normalizes polygonal geometry; anything else yields nil
func toMultiPolygon(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{closePolygon(v)}
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(v))
		for _, p := range v {
			out = append(out, closePolygon(p))
		}
		return out
	case orb.Collection:
		var out orb.MultiPolygon
		for _, part := range v {
			out = append(out, toMultiPolygon(part)...)
		}
		return out
	}
	return nil
}

func closePolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		out = append(out, geom.CloseRing(append(orb.Ring(nil), r...)))
	}
	return out
}
