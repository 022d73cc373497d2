package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnd_rounds_total",
		Help: "Total number of completed rounds.",
	})
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dnd_turns_total",
			Help: "Actor turns by role and outcome.",
		},
		[]string{"role", "status"}, // committed, generation_failed, empty
	)
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dnd_round_duration_seconds",
		Help:    "Histogram of round durations, idle delay excluded.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s ... 256s
	})
	gameLogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnd_game_log_entries",
		Help: "Current number of entries in the game log.",
	})
	logPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnd_game_log_pruned_total",
		Help: "Total number of log entries dropped by retention.",
	})
	persistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnd_persist_failures_total",
		Help: "Total number of failed state commits.",
	})
)
