// Package metrics exposes the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts rate poll attempts against upstream providers,
	// partitioned by provider source and outcome.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fxvault",
		Name:      "polls_total",
		Help:      "Rate poll attempts by source and outcome.",
	}, []string{"source", "outcome"})

	// ConversionsTotal counts conversion requests served.
	ConversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fxvault",
		Name:      "conversions_total",
		Help:      "Currency conversions performed.",
	})

	// BackfillRequestsTotal counts historical backfill fetches by outcome.
	BackfillRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fxvault",
		Name:      "backfill_requests_total",
		Help:      "Historical backfill fetches by outcome.",
	}, []string{"outcome"})

	// StorageErrorsTotal counts failed snapshot reads and writes.
	StorageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fxvault",
		Name:      "storage_errors_total",
		Help:      "Snapshot storage operations that returned an error.",
	})

	// HTTPRequestDuration observes API request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fxvault",
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
