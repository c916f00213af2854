package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"kuanb/zonecheck/coord"
	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/overlay"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func decimal(id string, x, y float64) coord.Row {
	return coord.Row{ID: id, X: &x, Y: &y}
}

func dms(id string, lonDeg, lonMin, lonSec float64, lonHemi string, latDeg, latMin, latSec float64, latHemi string) coord.Row {
	return coord.Row{
		ID:        id,
		LonDegree: &lonDeg, LonMinute: &lonMin, LonSecond: &lonSec, LonHemisphere: lonHemi,
		LatDegree: &latDeg, LatMinute: &latMin, LatSecond: &latSec, LatHemisphere: latHemi,
	}
}

type countingProvider struct {
	calls int32
	next  layer.Provider
}

func (c *countingProvider) Fetch(ctx context.Context, cfg layer.Config) (*geojson.FeatureCollection, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.next.Fetch(ctx, cfg)
}

func newPipeline(t *testing.T, maxRows int) (*Pipeline, *countingProvider) {
	t.Helper()
	konservasi := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{124.6, 1.5}, {125.0, 1.5}, {125.0, 1.9}, {124.6, 1.9}, {124.6, 1.5}}})
	f.Properties["namobj"] = "TN Bunaken"
	konservasi.Append(f)

	provider := &countingProvider{next: layer.ProviderFunc(func(ctx context.Context, cfg layer.Config) (*geojson.FeatureCollection, error) {
		switch cfg.Name {
		case "konservasi":
			return konservasi, nil
		case "kkprl":
			return nil, errors.New("feature fetch failed with status 502")
		}
		return nil, fmt.Errorf("%w: %s", layer.ErrNoFeatures, cfg.Name)
	})}

	reg, err := layer.NewRegistry(provider,
		layer.Config{Name: "konservasi", Title: "Kawasan Konservasi", LabelFields: []string{"namobj"}, Source: layer.Source{Type: layer.SourceStatic}},
		layer.Config{Name: "kkprl", Title: "KKPRL", LabelFields: []string{"kegiatan"}, Source: layer.Source{Type: layer.SourceStatic}},
		layer.Config{Name: "rumpon", LabelFields: []string{"nama"}, Source: layer.Source{Type: layer.SourceStatic}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return New(reg, maxRows), provider
}

func TestRunPoints(t *testing.T) {
	p, _ := newPipeline(t, DefaultMaxRows)
	res, err := p.Run(context.Background(), Request{
		Mode: "titik",
		Rows: []coord.Row{
			dms("P1", 124, 45, 0, "BT", 1, 40, 0, "LU"),
			decimal("P2", 110, -7),
		},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", res.RunID, err)
	}
	if res.Mode != geom.ModePoint {
		t.Errorf("mode = %s, want point", res.Mode)
	}
	if got := res.Geometry.IDs(); len(got) != 2 || got[0] != "P1" || got[1] != "P2" {
		t.Errorf("ids = %v", got)
	}

	want := map[string]overlay.Status{
		"konservasi": overlay.StatusMatched,
		"kkprl":      overlay.StatusUnavailable,
		"rumpon":     overlay.StatusUnavailable,
	}
	if len(res.Report.Entries) != len(want) {
		t.Fatalf("got %d report entries, want %d", len(res.Report.Entries), len(want))
	}
	for _, e := range res.Report.Entries {
		if e.Status != want[e.Layer] {
			t.Errorf("%s status = %s, want %s", e.Layer, e.Status, want[e.Layer])
		}
	}
	e, _ := res.Report.Entry("konservasi")
	if e.Count != 1 || len(e.Matches) != 1 || e.Matches[0].ID != "P1" {
		t.Errorf("konservasi entry = %+v", e)
	}
}

func TestRunPolygon(t *testing.T) {
	p, _ := newPipeline(t, DefaultMaxRows)
	res, err := p.Run(context.Background(), Request{
		Mode: geom.ModePolygon,
		Rows: []coord.Row{
			decimal("1", 124.5, 1.4),
			decimal("2", 125.1, 1.4),
			decimal("3", 125.1, 2.0),
			decimal("4", 124.5, 2.0),
		},
		Layers: []string{"konservasi"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.AreaHectares <= 0 {
		t.Errorf("area = %f, want > 0", res.AreaHectares)
	}
	if len(res.Report.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 for the selected layer", len(res.Report.Entries))
	}
	e := res.Report.Entries[0]
	if !e.Matched || len(e.Labels) != 1 || e.Labels[0] != "TN Bunaken" {
		t.Errorf("entry = %+v", e)
	}
	if got := res.Geometry.IDs(); len(got) != 1 || got[0] != geom.PolygonID {
		t.Errorf("ids = %v", got)
	}
}

func TestRunValidationStopsBeforeFetch(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"Empty batch", Request{Mode: geom.ModePoint}},
		{"Unknown mode", Request{Mode: "line", Rows: []coord.Row{decimal("1", 1, 1)}}},
		{"Duplicate id", Request{Mode: geom.ModePoint, Rows: []coord.Row{decimal("1", 1, 1), decimal("1", 2, 2)}}},
		{"Degenerate polygon", Request{Mode: geom.ModePolygon, Rows: []coord.Row{decimal("1", 1, 1), decimal("2", 2, 2)}}},
		{"Bad hemisphere", Request{Mode: geom.ModePoint, Rows: []coord.Row{dms("1", 124, 0, 0, "LU", 1, 0, 0, "LU")}}},
		{"Unknown layer", Request{Mode: geom.ModePoint, Rows: []coord.Row{decimal("1", 1, 1)}, Layers: []string{"nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, provider := newPipeline(t, DefaultMaxRows)
			_, err := p.Run(context.Background(), tt.req)
			if !errors.Is(err, coord.ErrInvalidInput) {
				t.Fatalf("Run() error = %v, want ErrInvalidInput", err)
			}
			if provider.calls != 0 {
				t.Errorf("provider called %d times for a rejected batch", provider.calls)
			}
		})
	}
}

func TestRunTruncates(t *testing.T) {
	p, _ := newPipeline(t, 3)
	rows := make([]coord.Row, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, decimal(fmt.Sprintf("P%d", i+1), 100+float64(i), 0))
	}
	res, err := p.Run(context.Background(), Request{Mode: geom.ModePoint, Rows: rows})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Truncated || len(res.Warnings) != 1 {
		t.Errorf("truncated = %v, warnings = %v", res.Truncated, res.Warnings)
	}
	if got := res.Geometry.Len(); got != 3 {
		t.Errorf("geometry has %d points, want 3", got)
	}
}
