package geom

import (
	"fmt"
	"math"
	"strings"

	"kuanb/zonecheck/coord"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Mode selects the geometry built from a batch
type Mode string

const (
	ModePoint   Mode = "point"
	ModePolygon Mode = "polygon"
)

// PolygonID labels the single feature built in polygon mode
const PolygonID = "polygon_1"

// SRID of every geometry handled here (unprojected WGS84 lon/lat)
const SRID = 4326

// ErrDegenerate is returned when a batch cannot form the requested geometry
var ErrDegenerate = fmt.Errorf("%w: degenerate geometry", coord.ErrInvalidInput)

// ParseMode accepts the API names and the form labels (titik / poligon)
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "points", "titik", "titik (point)":
		return ModePoint, nil
	case "polygon", "poligon", "poligon (polygon)":
		return ModePolygon, nil
	}
	return "", fmt.Errorf("%w: unknown geometry mode %q", coord.ErrInvalidInput, s)
}

// PointFeature is one input row placed on the map
type PointFeature struct {
	ID    string
	Point orb.Point
}

// Geometry is built once per batch and treated as read-only afterwards
type Geometry struct {
	Mode    Mode
	Points  []PointFeature // point mode
	Polygon orb.Polygon    // polygon mode, single closed outer ring
}

// Build turns resolved positions into a point set or a single auto-closed polygon
func Build(positions []coord.Position, mode Mode) (*Geometry, error) {
	switch mode {
	case ModePoint:
		if len(positions) == 0 {
			return nil, fmt.Errorf("%w: point mode needs at least 1 row", ErrDegenerate)
		}
		points := make([]PointFeature, 0, len(positions))
		for _, p := range positions {
			points = append(points, PointFeature{ID: p.ID, Point: orb.Point{p.Lon, p.Lat}})
		}
		return &Geometry{Mode: ModePoint, Points: points}, nil

	case ModePolygon:
		if len(positions) < 3 {
			return nil, fmt.Errorf("%w: polygon mode needs at least 3 rows, got %d", ErrDegenerate, len(positions))
		}
		ring := make(orb.Ring, 0, len(positions)+1)
		distinct := make(map[orb.Point]struct{}, len(positions))
		for _, p := range positions {
			pt := orb.Point{p.Lon, p.Lat}
			ring = append(ring, pt)
			distinct[pt] = struct{}{}
		}
		if len(distinct) < 3 {
			return nil, fmt.Errorf("%w: polygon needs at least 3 distinct vertices, got %d", ErrDegenerate, len(distinct))
		}
		return &Geometry{Mode: ModePolygon, Polygon: orb.Polygon{CloseRing(ring)}}, nil
	}

	return nil, fmt.Errorf("%w: unknown geometry mode %q", coord.ErrInvalidInput, mode)
}

// CloseRing appends the first vertex when the ring is open. Closing an
// already closed ring returns it unchanged.
func CloseRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	return append(ring, ring[0])
}

// IDs returns the feature identifiers in build order
func (g *Geometry) IDs() []string {
	if g.Mode == ModePolygon {
		return []string{PolygonID}
	}
	ids := make([]string, 0, len(g.Points))
	for _, p := range g.Points {
		ids = append(ids, p.ID)
	}
	return ids
}

// Bound returns the bounding box of the whole geometry
func (g *Geometry) Bound() orb.Bound {
	if g.Mode == ModePolygon {
		return g.Polygon.Bound()
	}
	mp := make(orb.MultiPoint, 0, len(g.Points))
	for _, p := range g.Points {
		mp = append(mp, p.Point)
	}
	return mp.Bound()
}

// AreaHectares returns the geodesic area of the polygon, 0 in point mode
func (g *Geometry) AreaHectares() float64 {
	if g.Mode != ModePolygon {
		return 0
	}
	return math.Abs(geo.Area(g.Polygon)) / 10000
}

// Len returns the number of features the geometry exports as
func (g *Geometry) Len() int {
	if g.Mode == ModePolygon {
		return 1
	}
	return len(g.Points)
}
