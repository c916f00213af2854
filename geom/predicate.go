package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Orientation returns the sign of the cross product (b-a)x(c-a):
// 1 counter-clockwise, -1 clockwise, 0 collinear. No epsilon is applied.
func Orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// OnSegment reports whether p lies on the closed segment ab
func OnSegment(p, a, b orb.Point) bool {
	if Orientation(a, b, p) != 0 {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

// SegmentsIntersect reports whether closed segments p1p2 and q1q2 share at least one point
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := Orientation(q1, q2, p1)
	d2 := Orientation(q1, q2, p2)
	d3 := Orientation(p1, p2, q1)
	d4 := Orientation(p1, p2, q2)

	if d1 != d2 && d3 != d4 && d1 != 0 && d2 != 0 && d3 != 0 && d4 != 0 {
		return true
	}

	// touching or collinear cases
	return (d1 == 0 && OnSegment(p1, q1, q2)) ||
		(d2 == 0 && OnSegment(p2, q1, q2)) ||
		(d3 == 0 && OnSegment(q1, p1, p2)) ||
		(d4 == 0 && OnSegment(q2, p1, p2))
}

// OnBoundary reports whether p lies on any ring of the polygon
func OnBoundary(poly orb.Polygon, p orb.Point) bool {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if OnSegment(p, ring[i], ring[i+1]) {
				return true
			}
		}
	}
	return false
}

// PointStrictlyWithin reports whether p is inside the polygon and not on any of its rings.
// Points in holes are outside.
func PointStrictlyWithin(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !poly.Bound().Contains(p) {
		return false
	}
	if OnBoundary(poly, p) {
		return false
	}
	return planar.PolygonContains(poly, p)
}

// PointStrictlyWithinAny reports whether p is strictly within one of the polygons
func PointStrictlyWithinAny(mp orb.MultiPolygon, p orb.Point) bool {
	for _, poly := range mp {
		if PointStrictlyWithin(poly, p) {
			return true
		}
	}
	return false
}

// PolygonsIntersect reports whether two polygons share at least one point.
// Touching boundaries count as an intersection.
func PolygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	for _, ra := range a {
		for _, rb := range b {
			if !ra.Bound().Intersects(rb.Bound()) {
				continue
			}
			if ringEdgesCross(ra, rb) {
				return true
			}
		}
	}

	// no edges meet: either one lies inside the other or they are apart
	if len(a[0]) > 0 && planar.PolygonContains(b, a[0][0]) {
		return true
	}
	if len(b[0]) > 0 && planar.PolygonContains(a, b[0][0]) {
		return true
	}
	return false
}

// PolygonIntersectsAny reports whether poly intersects one of the polygons
func PolygonIntersectsAny(mp orb.MultiPolygon, poly orb.Polygon) bool {
	for _, p := range mp {
		if PolygonsIntersect(p, poly) {
			return true
		}
	}
	return false
}

func ringEdgesCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if SegmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// ValidPolygon reports whether every ring is closed, has at least four
// vertices and only finite coordinates
func ValidPolygon(poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	for _, ring := range poly {
		if len(ring) < 4 || !ring.Closed() {
			return false
		}
		for _, p := range ring {
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
				return false
			}
		}
	}
	return true
}
