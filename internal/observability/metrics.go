package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Idempotency decision outcomes. Label values are fixed to keep cardinality bounded.
const (
	OutcomeFresh         = "fresh"
	OutcomeReplay        = "replay"
	OutcomeConflict      = "conflict"
	OutcomeMissingKey    = "missing_key"
	OutcomeRaceRecovered = "race_recovered"
	OutcomeFailure       = "failure"
)

var (
	idempotencyDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_idempotency_decisions_total",
		Help: "Total coordinator decisions by outcome",
	}, []string{"outcome"})

	coordinatorDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_idempotency_coordinator_seconds",
		Help:    "Wall time of a full coordinator pass, including the protected operation",
		Buckets: prometheus.DefBuckets,
	})

	resultCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_idempotency_cache_lookups_total",
		Help: "Result cache lookups by result (hit or miss)",
	}, []string{"result"})

	repositoryOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_repository_operations_total",
		Help: "Repository operations by entity, operation and status",
	}, []string{"entity", "operation", "status"})
)

func init() {
	prometheus.MustRegister(
		idempotencyDecisionsTotal,
		coordinatorDuration,
		resultCacheLookupsTotal,
		repositoryOperationsTotal,
	)
}

func RecordIdempotencyDecision(outcome string) {
	idempotencyDecisionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveCoordinatorDuration(seconds float64) {
	coordinatorDuration.Observe(seconds)
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	resultCacheLookupsTotal.WithLabelValues(result).Inc()
}

func RecordRepositoryOperation(entity, operation, status string) {
	repositoryOperationsTotal.WithLabelValues(entity, operation, status).Inc()
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
