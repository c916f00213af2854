package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders the geometry as GeoJSON, one feature per point
// or a single polygon feature, each with an "id" property
func (g *Geometry) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if g.Mode == ModePolygon {
		f := geojson.NewFeature(clonePolygon(g.Polygon))
		f.Properties["id"] = PolygonID
		fc.Append(f)
		return fc
	}
	for _, p := range g.Points {
		f := geojson.NewFeature(p.Point)
		f.Properties["id"] = p.ID
		fc.Append(f)
	}
	return fc
}

// FromFeatureCollection reads back a geometry produced by FeatureCollection
func FromFeatureCollection(fc *geojson.FeatureCollection) (*Geometry, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, fmt.Errorf("%w: empty feature collection", ErrDegenerate)
	}

	if poly, ok := fc.Features[0].Geometry.(orb.Polygon); ok {
		if len(fc.Features) != 1 {
			return nil, fmt.Errorf("%w: expected a single polygon feature, got %d", ErrDegenerate, len(fc.Features))
		}
		return &Geometry{Mode: ModePolygon, Polygon: clonePolygon(poly)}, nil
	}

	points := make([]PointFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("%w: feature %d is %T, not a point", ErrDegenerate, i, f.Geometry)
		}
		points = append(points, PointFeature{ID: f.Properties.MustString("id", ""), Point: pt})
	}
	return &Geometry{Mode: ModePoint, Points: points}, nil
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		out = append(out, append(orb.Ring(nil), r...))
	}
	return out
}
