package geom

import (
	"testing"

	"github.com/paulmach/orb"
)

var square = orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

var squareWithHole = orb.Polygon{
	{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
	{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
}

func TestPointStrictlyWithin(t *testing.T) {
	tests := []struct {
		name  string
		poly  orb.Polygon
		point orb.Point
		want  bool
	}{
		{"Centre", square, orb.Point{5, 5}, true},
		{"Outside", square, orb.Point{15, 5}, false},
		{"On edge", square, orb.Point{10, 5}, false},
		{"On vertex", square, orb.Point{0, 0}, false},
		{"Inside hole", squareWithHole, orb.Point{5, 5}, false},
		{"On hole edge", squareWithHole, orb.Point{4, 5}, false},
		{"Between hole and shell", squareWithHole, orb.Point{2, 2}, true},
		{"Empty polygon", orb.Polygon{}, orb.Point{0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointStrictlyWithin(tt.poly, tt.point); got != tt.want {
				t.Errorf("PointStrictlyWithin(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestPolygonsIntersect(t *testing.T) {
	tests := []struct {
		name string
		b    orb.Polygon
		want bool
	}{
		{"Disjoint", orb.Polygon{{{20, 20}, {30, 20}, {30, 30}, {20, 20}}}, false},
		{"Overlapping", orb.Polygon{{{5, 5}, {15, 5}, {15, 15}, {5, 15}, {5, 5}}}, true},
		{"Contained", orb.Polygon{{{1, 1}, {2, 1}, {2, 2}, {1, 1}}}, true},
		{"Containing", orb.Polygon{{{-5, -5}, {20, -5}, {20, 20}, {-5, 20}, {-5, -5}}}, true},
		{"Touching edge", orb.Polygon{{{10, 0}, {20, 0}, {20, 10}, {10, 10}, {10, 0}}}, true},
		{"Touching vertex", orb.Polygon{{{10, 10}, {20, 10}, {20, 20}, {10, 10}}}, true},
		{"Bounds overlap only", orb.Polygon{{{20, 9}, {20, 20}, {9, 20}, {20, 9}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PolygonsIntersect(square, tt.b); got != tt.want {
				t.Errorf("PolygonsIntersect(square, b) = %v, want %v", got, tt.want)
			}
			if got := PolygonsIntersect(tt.b, square); got != tt.want {
				t.Errorf("PolygonsIntersect(b, square) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolygonInsideHoleDoesNotIntersect(t *testing.T) {
	inner := orb.Polygon{{{4.5, 4.5}, {5.5, 4.5}, {5.5, 5.5}, {4.5, 5.5}, {4.5, 4.5}}}
	if PolygonsIntersect(squareWithHole, inner) {
		t.Error("polygon inside a hole should not intersect")
	}
}

func TestValidPolygon(t *testing.T) {
	tests := []struct {
		name string
		poly orb.Polygon
		want bool
	}{
		{"Square", square, true},
		{"Open ring", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, false},
		{"Too few vertices", orb.Polygon{{{0, 0}, {1, 0}, {0, 0}}}, false},
		{"Empty", orb.Polygon{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPolygon(tt.poly); got != tt.want {
				t.Errorf("ValidPolygon() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRTreeSearch(t *testing.T) {
	rt := NewRTree()
	rt.Insert(0, square.Bound())
	rt.Insert(1, orb.Polygon{{{20, 20}, {30, 20}, {30, 30}, {20, 20}}}.Bound())
	rt.Insert(2, orb.Polygon{{{5, 5}, {15, 5}, {15, 15}, {5, 5}}}.Bound())

	if rt.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", rt.Size())
	}
	got := rt.SearchPoint(orb.Point{7, 7})
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("SearchPoint() = %v, want [0 2]", got)
	}
	if got := rt.SearchPoint(orb.Point{-50, -50}); len(got) != 0 {
		t.Errorf("SearchPoint() far away = %v, want []", got)
	}
}
