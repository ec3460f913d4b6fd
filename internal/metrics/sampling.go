package metrics

import "github.com/prometheus/client_golang/prometheus"

// Constrained-sampling Prometheus metrics.
var (
	SamplingRounds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tabsynth",
			Name:      "sampling_rounds",
			Help:      "Replacement round-trips per generation request",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"outcome"}, // "ok" / "unsatisfiable"
	)

	SamplingRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tabsynth",
			Name:      "sampling_rows_total",
			Help:      "Rows drawn from the generative model, by disposition",
		},
		[]string{"disposition"}, // "sampled" / "accepted"
	)

	SamplingAcceptanceRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tabsynth",
			Name:      "sampling_acceptance_ratio",
			Help:      "Accepted rows over total rows sampled per generation request",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		},
	)

	SamplingUnsatisfiableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tabsynth",
			Name:      "sampling_unsatisfiable_total",
			Help:      "Generation requests that exhausted the sampling budget",
		},
	)
)

// Generative-model backend metrics.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tabsynth",
			Name:      "model_requests_total",
			Help:      "Total generative model requests",
		},
		[]string{"backend", "op", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tabsynth",
			Name:      "model_request_duration_seconds",
			Help:      "Generative model request duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "op"},
	)
)

// RegisterSamplingMetrics registers sampling and model metrics explicitly (no init()).
func RegisterSamplingMetrics() {
	prometheus.MustRegister(
		SamplingRounds,
		SamplingRowsTotal,
		SamplingAcceptanceRatio,
		SamplingUnsatisfiableTotal,
		ModelRequestsTotal,
		ModelRequestDuration,
	)
}
