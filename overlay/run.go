package overlay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EvaluateAll evaluates g against every configured layer in parallel.
// The result slice follows configs order. Missing layers become unavailable,
// evaluation errors and panics become failed; nothing is returned as an error.
func (e *Evaluator) EvaluateAll(ctx context.Context, g *geom.Geometry, resolved layer.Resolved, configs []layer.Config) []Result {
	results := make([]Result, len(configs))

	limit := e.Concurrency
	if limit <= 0 {
		limit = 1
	}
	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, cfg := range configs {
		eg.Go(func() error {
			start := time.Now()
			res := e.evaluateOne(ctx, g, resolved, cfg)
			if g != nil {
				res.Mode = g.Mode
			}
			results[i] = res

			metrics.LayerEvaluationsTotal.WithLabelValues(cfg.Name, string(res.Status)).Inc()
			metrics.LayerEvalDurationMs.WithLabelValues(cfg.Name).Observe(float64(time.Since(start).Milliseconds()))
			log.Debug().
				Str("layer", cfg.Name).
				Str("status", string(res.Status)).
				Int("count", res.Count).
				Dur("duration", time.Since(start)).
				Msg("Layer evaluated")
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (e *Evaluator) evaluateOne(ctx context.Context, g *geom.Geometry, resolved layer.Resolved, cfg layer.Config) (res Result) {
	base := Result{
		Layer:  cfg.Name,
		Title:  cfg.DisplayName(),
		Labels: []string{},
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("layer", cfg.Name).Interface("panic", rec).Msg("Layer evaluation panicked")
			res = base
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("evaluation panicked: %v", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		base.Status = StatusUnavailable
		base.Error = err.Error()
		return base
	}
	l, err := resolved.Layer(cfg.Name)
	if err != nil {
		base.Status = StatusUnavailable
		base.Error = err.Error()
		return base
	}

	res, err = e.Evaluate(g, l)
	if errors.Is(err, layer.ErrNoFeatures) {
		base.Status = StatusUnavailable
		base.Error = err.Error()
		return base
	}
	if err != nil {
		log.Warn().Err(err).Str("layer", cfg.Name).Msg("Layer evaluation failed")
		base.Status = StatusFailed
		base.Error = err.Error()
		return base
	}
	res.Title = cfg.DisplayName()
	return res
}
