// Package server exposes the check pipeline over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kuanb/zonecheck/coord"
	"kuanb/zonecheck/export"
	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/metrics"
	"kuanb/zonecheck/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// MaxBodyBytes limits every request body
const MaxBodyBytes = 10 << 20

// Invalidator drops cached layer content; layer.CachedProvider implements it
type Invalidator interface {
	Invalidate(name string)
}

// Server holds the pipeline and registry for handling requests
type Server struct {
	pipeline *pipeline.Pipeline
	registry *layer.Registry
	cache    Invalidator
}

// New creates a server. cache may be nil when layers are not cached.
func New(p *pipeline.Pipeline, cache Invalidator) *Server {
	return &Server{pipeline: p, registry: p.Registry, cache: cache}
}

// Routes builds the chi router with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/layers", s.handleLayers)
		r.Post("/layers/refresh", s.handleRefresh)
		r.Post("/check", s.handleCheck)
		r.Post("/check/csv", s.handleCheckCSV)
		r.Post("/export", s.handleExport)
	})
	return r
}

// checkResponse adds the built geometry as GeoJSON to a pipeline result
type checkResponse struct {
	*pipeline.Result
	Geometry *geojson.FeatureCollection `json:"geometry"`
}

type layerInfo struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	LabelFields []string `json:"label_fields"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"layers":  len(s.registry.Configs()),
		"runtime": ReadRuntimeMetrics(),
	})
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	configs := s.registry.Configs()
	out := make([]layerInfo, 0, len(configs))
	for _, c := range configs {
		out = append(out, layerInfo{
			Name:        c.Name,
			Title:       c.DisplayName(),
			Source:      c.Source.Type,
			LabelFields: c.LabelFields,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotImplemented, errors.New("layer cache is not enabled"))
		return
	}
	name := r.URL.Query().Get("layer")
	if name != "" {
		if _, err := s.registry.Select(name); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
	}
	s.cache.Invalidate(name)
	log.Info().Str("layer", name).Msg("Layer cache invalidated")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	s.run(w, r, req)
}

// handleCheckCSV accepts a CSV batch; mode and layers come from the query string
func (s *Server) handleCheckCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := coord.ReadCSV(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	req := pipeline.Request{
		Mode: geom.Mode(q.Get("mode")),
		Rows: rows,
	}
	if req.Mode == "" {
		req.Mode = geom.ModePoint
	}
	if layers := q.Get("layers"); layers != "" {
		for _, name := range strings.Split(layers, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Layers = append(req.Layers, name)
			}
		}
	}
	s.run(w, r, req)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	res, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, coord.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Result: res, Geometry: res.Geometry.FeatureCollection()})
}

// handleExport packages a GeoJSON geometry as returned by /api/check
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err))
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid GeoJSON: %w", err))
		return
	}
	g, err := geom.FromFeatureCollection(fc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := export.SafeName(r.URL.Query().Get("name"))
	var buf bytes.Buffer
	switch format := r.URL.Query().Get("format"); format {
	case "", "shp", "shapefile":
		if err := export.ShapefileZip(&buf, g, name); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, name))
	case "geojson":
		if err := export.GeoJSON(&buf, g); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.geojson"`, name))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown export format %q", format))
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Msg("Failed to write export")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
