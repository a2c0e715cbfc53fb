package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("riskcascade.usecase")

// Run outcome labels
const (
	resultConverged    = "converged"
	resultNotConverged = "not_converged"
	resultFailed       = "failed"
)

var (
	analysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskcascade_analysis_runs_total",
		Help: "Total analysis runs by result",
	}, []string{"result"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskcascade_analysis_duration_seconds",
		Help:    "Analysis run duration in seconds, from catalogue load to persistence",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	})

	// analysisIterations tracks fixed-point iterations per phase
	analysisIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskcascade_analysis_iterations",
		Help:    "Fixed-point iterations performed per phase",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	}, []string{"phase"})
)
