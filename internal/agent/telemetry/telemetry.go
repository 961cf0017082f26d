// Package telemetry exposes Prometheus metrics for the query pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryagent",
		Name:      "queries_total",
		Help:      "Number of processed queries by route choice.",
	}, []string{"route"})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryagent",
		Name:      "stage_failures_total",
		Help:      "Number of pipeline stage failures by stage.",
	}, []string{"stage"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "queryagent",
		Name:      "query_duration_seconds",
		Help:      "End to end query processing time.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

// ObserveQuery records one completed query.
func ObserveQuery(route string, d time.Duration) {
	queriesTotal.WithLabelValues(route).Inc()
	queryDuration.Observe(d.Seconds())
}

// StageFailure counts a failed pipeline stage.
func StageFailure(stage string) {
	stageFailuresTotal.WithLabelValues(stage).Inc()
}
