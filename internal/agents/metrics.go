package agents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnd_generation_requests_total",
			Help: "Total number of generation backend calls.",
		},
		[]string{"backend", "model", "role", "status"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnd_generation_duration_seconds",
			Help:    "Histogram of generation call durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80, 120},
		},
		[]string{"backend", "model", "role"},
	)
	generationTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dnd_generation_tokens",
			Help:    "Histogram of prompt and completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20), // 100 ... 2000
		},
		[]string{"backend", "model", "kind"},
	)
)

func observeCall(backend, model, role, status string, seconds float64) {
	generationRequestsTotal.WithLabelValues(backend, model, role, status).Inc()
	if status == "success" {
		generationDuration.WithLabelValues(backend, model, role).Observe(seconds)
	}
}

func observeTokens(backend, model string, prompt, completion int) {
	if prompt > 0 {
		generationTokens.WithLabelValues(backend, model, "prompt").Observe(float64(prompt))
	}
	if completion > 0 {
		generationTokens.WithLabelValues(backend, model, "completion").Observe(float64(completion))
	}
}
