package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/overlay"
	"kuanb/zonecheck/pipeline"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Invalidate(name string) {
	c.invalidated = append(c.invalidated, name)
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingCache) {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Polygon{{{124.6, 1.5}, {125.0, 1.5}, {125.0, 1.9}, {124.6, 1.9}, {124.6, 1.5}}})
	f.Properties["namobj"] = "TN Bunaken"
	fc.Append(f)

	reg, err := layer.NewRegistry(layer.NewStaticProvider(map[string]*geojson.FeatureCollection{"konservasi": fc}),
		layer.Config{Name: "konservasi", Title: "Kawasan Konservasi", LabelFields: []string{"namobj"}, Source: layer.Source{Type: layer.SourceStatic}},
		layer.Config{Name: "kkprl", Title: "KKPRL", LabelFields: []string{"kegiatan"}, Source: layer.Source{Type: layer.SourceStatic}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	cache := &recordingCache{}
	srv := httptest.NewServer(New(pipeline.New(reg, 50), cache).Routes())
	t.Cleanup(srv.Close)
	return srv, cache
}

type checkBody struct {
	RunID     string          `json:"run_id"`
	Mode      string          `json:"mode"`
	Truncated bool            `json:"truncated"`
	Report    overlay.Report  `json:"report"`
	Geometry  json.RawMessage `json:"geometry"`
	Error     string          `json:"error"`
}

func post(t *testing.T, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func TestHealthAndLayers(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/layers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var layers []layerInfo
	if err := json.NewDecoder(resp.Body).Decode(&layers); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(layers) != 2 || layers[0].Name != "konservasi" || layers[1].Title != "KKPRL" {
		t.Errorf("layers = %+v", layers)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}
}

func TestCheckJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"DMS point", `{"mode":"point","rows":[{"id":"P1","bujur_derajat":124,"bujur_menit":45,"bujur_detik":0,"BT_BB":"BT","lintang_derajat":1,"lintang_menit":40,"lintang_detik":0,"LU_LS":"LU"}]}`, http.StatusOK},
		{"Decimal polygon", `{"mode":"poligon","rows":[{"id":"1","x":124.5,"y":1.4},{"id":"2","x":125.1,"y":1.4},{"id":"3","x":125.1,"y":2.0}]}`, http.StatusOK},
		{"Empty batch", `{"mode":"point","rows":[]}`, http.StatusBadRequest},
		{"Degenerate polygon", `{"mode":"polygon","rows":[{"id":"1","x":1,"y":1},{"id":"2","x":2,"y":2}]}`, http.StatusBadRequest},
		{"Unknown layer", `{"mode":"point","rows":[{"id":"1","x":1,"y":1}],"layers":["nope"]}`, http.StatusBadRequest},
		{"Malformed JSON", `{"mode":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, srv.URL+"/api/check", "application/json", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, data)
			}
			var body checkBody
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.wantStatus != http.StatusOK {
				if body.Error == "" {
					t.Error("error response has no message")
				}
				return
			}
			if body.RunID == "" || len(body.Geometry) == 0 {
				t.Errorf("missing run id or geometry: %s", data)
			}
			if len(body.Report.Entries) != 2 {
				t.Fatalf("got %d entries, want 2", len(body.Report.Entries))
			}
			if e := body.Report.Entries[0]; e.Status != overlay.StatusMatched || e.Labels[0] != "TN Bunaken" {
				t.Errorf("konservasi entry = %+v", e)
			}
			if e := body.Report.Entries[1]; e.Status != overlay.StatusUnavailable || e.Message == "" {
				t.Errorf("kkprl entry = %+v", e)
			}
		})
	}
}

func TestCheckCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	csv := "id,x,y\n1,124.5,1.4\n2,125.1,1.4\n3,125.1,2.0\n4,124.5,2.0\n"

	resp, data := post(t, srv.URL+"/api/check/csv?mode=polygon&layers=konservasi", "text/csv", csv)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	var body checkBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "polygon" || len(body.Report.Entries) != 1 || !body.Report.Entries[0].Matched {
		t.Errorf("body = %+v", body)
	}

	resp, _ = post(t, srv.URL+"/api/check/csv", "text/csv", "name,x\nA,1\n")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing columns status = %d, want 400", resp.StatusCode)
	}
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t)
	fc := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","properties":{"id":"P1"},"geometry":{"type":"Point","coordinates":[124.75,1.6]}},` +
		`{"type":"Feature","properties":{"id":"P2"},"geometry":{"type":"Point","coordinates":[110,-7]}}]}`

	resp, data := post(t, srv.URL+"/api/export?format=shp&name=survei", "application/geo+json", fc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%s)", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "survei.zip") {
		t.Errorf("content disposition = %q", cd)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	if len(zr.File) != 4 {
		t.Errorf("zip has %d entries, want 4", len(zr.File))
	}

	resp, data = post(t, srv.URL+"/api/export?format=geojson", "application/geo+json", fc)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("geojson status = %d", resp.StatusCode)
	}
	if _, err := geojson.UnmarshalFeatureCollection(data); err != nil {
		t.Errorf("geojson export is not a FeatureCollection: %v", err)
	}

	for _, tc := range []struct{ query, body string }{
		{"?format=kml", fc},
		{"?format=shp", `{"type":"FeatureCollection","features":[]}`},
		{"?format=shp", `not json`},
	} {
		resp, _ := post(t, srv.URL+"/api/export"+tc.query, "application/geo+json", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("export%s status = %d, want 400", tc.query, resp.StatusCode)
		}
	}
}

func TestRefresh(t *testing.T) {
	srv, cache := newTestServer(t)

	resp, _ := post(t, srv.URL+"/api/layers/refresh?layer=kkprl", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	resp, _ = post(t, srv.URL+"/api/layers/refresh", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	resp, _ = post(t, srv.URL+"/api/layers/refresh?layer=nope", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown layer status = %d, want 404", resp.StatusCode)
	}
	if strings.Join(cache.invalidated, ",") != "kkprl," {
		t.Errorf("invalidated = %q", cache.invalidated)
	}
}
