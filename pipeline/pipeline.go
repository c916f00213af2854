// Package pipeline runs one submission end to end:
// rows -> geometry -> per-layer results -> report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kuanb/zonecheck/coord"
	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/metrics"
	"kuanb/zonecheck/overlay"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxRows is the row ceiling used when none is configured
const DefaultMaxRows = 50

// Request is one submitted batch
type Request struct {
	Mode   geom.Mode   `json:"mode"`
	Rows   []coord.Row `json:"rows"`
	Layers []string    `json:"layers,omitempty"` // empty selects every registered layer
}

// Result is everything a caller needs to display and export a run
type Result struct {
	RunID        string           `json:"run_id"`
	Mode         geom.Mode        `json:"mode"`
	Positions    []coord.Position `json:"positions"`
	Geometry     *geom.Geometry   `json:"-"`
	AreaHectares float64          `json:"area_hectares,omitempty"`
	Truncated    bool             `json:"truncated"`
	Warnings     []string         `json:"warnings,omitempty"`
	Report       overlay.Report   `json:"report"`
}

// Pipeline wires the registry and evaluator together
type Pipeline struct {
	Registry  *layer.Registry
	Evaluator *overlay.Evaluator
	MaxRows   int // <= 0 disables truncation
}

// New creates a pipeline with the default evaluator
func New(reg *layer.Registry, maxRows int) *Pipeline {
	return &Pipeline{
		Registry:  reg,
		Evaluator: overlay.NewEvaluator(),
		MaxRows:   maxRows,
	}
}

// Run executes one submission. Input validation errors wrap
// coord.ErrInvalidInput and are returned before any layer is fetched;
// layer problems only ever show up inside the report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Mode: req.Mode}
	logger := log.With().Str("run_id", res.RunID).Logger()

	rows, truncated := coord.Truncate(req.Rows, p.MaxRows)
	if truncated {
		res.Truncated = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("only the first %d of %d rows were processed", p.MaxRows, len(req.Rows)))
		metrics.TruncatedTotal.Inc()
		logger.Warn().Int("rows", len(req.Rows)).Int("max_rows", p.MaxRows).Msg("Batch truncated")
	}

	g, positions, configs, err := p.prepare(req, rows)
	if err != nil {
		metrics.RejectedTotal.Inc()
		logger.Info().Err(err).Msg("Batch rejected")
		return nil, err
	}
	res.Mode = g.Mode
	res.Geometry = g
	res.Positions = positions
	res.AreaHectares = g.AreaHectares()

	eval := p.Evaluator
	if eval == nil {
		eval = overlay.NewEvaluator()
	}
	resolved := p.Registry.Resolve(ctx, configs)
	results := eval.EvaluateAll(ctx, g, resolved, configs)
	res.Report = overlay.Aggregate(configs, results)

	metrics.ChecksTotal.WithLabelValues(string(g.Mode)).Inc()
	logger.Info().
		Str("mode", string(g.Mode)).
		Int("rows", len(rows)).
		Int("layers", len(configs)).
		Strs("matched", res.Report.MatchedLayers()).
		Dur("duration", time.Since(start)).
		Msg("Check complete")
	return res, nil
}

func (p *Pipeline) prepare(req Request, rows []coord.Row) (*geom.Geometry, []coord.Position, []layer.Config, error) {
	if p.Registry == nil {
		return nil, nil, nil, errors.New("pipeline has no layer registry")
	}
	mode, err := geom.ParseMode(string(req.Mode))
	if err != nil {
		return nil, nil, nil, err
	}
	positions, err := coord.Resolve(rows)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := geom.Build(positions, mode)
	if err != nil {
		return nil, nil, nil, err
	}
	configs, err := p.Registry.Select(req.Layers...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", coord.ErrInvalidInput, err)
	}
	return g, positions, configs, nil
}
