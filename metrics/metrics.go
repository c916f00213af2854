// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonecheck_checks_total",
		Help: "Total number of overlay checks by geometry mode",
	}, []string{"mode"})
	RejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonecheck_rejected_total",
		Help: "Total number of batches rejected by input validation",
	})
	TruncatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonecheck_truncated_total",
		Help: "Total number of batches truncated to the row ceiling",
	})
	LayerEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonecheck_layer_evaluations_total",
		Help: "Layer evaluations by outcome status",
	}, []string{"layer", "status"})
	LayerEvalDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonecheck_layer_eval_duration_ms",
		Help:    "Layer evaluation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"layer"})
	LayerFetchFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonecheck_layer_fetch_fail_total",
		Help: "Layer fetches that left the layer unavailable",
	}, []string{"layer"})
)

func init() {
	prometheus.MustRegister(ChecksTotal)
	prometheus.MustRegister(RejectedTotal)
	prometheus.MustRegister(TruncatedTotal)
	prometheus.MustRegister(LayerEvaluationsTotal)
	prometheus.MustRegister(LayerEvalDurationMs)
	prometheus.MustRegister(LayerFetchFailTotal)
}

// Handler exposes the default registry
func Handler() http.Handler { return promhttp.Handler() }
