package layer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"kuanb/zonecheck/geom"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one reference zone: its polygons, bounding box and attributes
type Feature struct {
	Index      int
	Geometry   orb.MultiPolygon
	Bound      orb.Bound
	Properties geojson.Properties
}

// Label joins the non-empty values of the given attribute fields
func (f *Feature) Label(fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, name := range fields {
		v, ok := f.Properties[name]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(formatValue(v))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " - ")
}

// formatValue prints attribute values as they appear in the source table.
// GeoJSON numbers decode as float64, so 1234567 must not become 1.234567e+06.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprintf("%v", v)
}

// Layer is a resolved reference layer, read-only once built
type Layer struct {
	Config   Config
	Features []Feature
	RTree    *geom.RTree
}

// Name returns the configured layer name
func (l *Layer) Name() string {
	return l.Config.Name
}

// Candidates returns indexes of features whose bounding box intersects b
func (l *Layer) Candidates(b orb.Bound) []int {
	if l.RTree != nil {
		return l.RTree.Search(b)
	}
	// Fallback to brute force search
	out := make([]int, 0)
	for i := range l.Features {
		if l.Features[i].Bound.Intersects(b) {
			out = append(out, i)
		}
	}
	return out
}
