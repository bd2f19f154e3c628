package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quibble_solves_total",
		Help: "Solve jobs finished, by terminal status.",
	}, []string{"status"})

	trialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quibble_trials_total",
		Help: "Optimization trials executed across all solve jobs.",
	})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quibble_solve_duration_seconds",
		Help:    "Wall time of solve jobs.",
		Buckets: prometheus.DefBuckets,
	})
)
