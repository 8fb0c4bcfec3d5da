// Package metrics holds the Prometheus collectors for correlation runs and
// the HTTP service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Correlation run metrics.
var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patchdiff",
			Name:      "correlation_runs_total",
			Help:      "Total number of correlation runs",
		},
		[]string{"status"}, // "ok" / "canceled" / "error"
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "patchdiff",
			Name:      "correlation_run_duration_seconds",
			Help:      "Correlation run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	PairsEvaluatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patchdiff",
			Name:      "correlation_pairs_evaluated_total",
			Help:      "Total number of function pairs scored",
		},
	)

	MatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patchdiff",
			Name:      "correlation_matches_total",
			Help:      "Total number of matches reported",
		},
	)

	FunctionsBulkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "patchdiff",
			Name:      "functions_bulked_total",
			Help:      "Total number of functions reduced to instruction bulks",
		},
	)
)

// Register registers every collector in this package with reg. Collectors
// already registered with reg are skipped, so Register may be called more
// than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		RunsTotal,
		RunDuration,
		PairsEvaluatedTotal,
		MatchesTotal,
		FunctionsBulkedTotal,
		httpRequestDuration,
		httpRequestsTotal,
		httpRequestBytes,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
