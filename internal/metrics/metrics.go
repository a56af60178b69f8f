// Package metrics holds the prometheus collectors shared by the ingestion
// pipeline and the notification service. Exposed on /metrics by the HTTP
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronwatch_pings_ingested_total",
		Help: "Pings ingested from log files, by source parser.",
	}, []string{"source"})

	MalformedLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronwatch_malformed_lines_total",
		Help: "Log lines skipped because they could not be parsed.",
	}, []string{"source"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cronwatch_notifications_total",
		Help: "Notification delivery attempts, by channel type, event and result.",
	}, []string{"type", "event", "result"})

	OverdueRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cronwatch_overdue_incidents_raised_total",
		Help: "Overdue incidents opened by the reconciliation sweep.",
	})

	OverdueResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cronwatch_overdue_incidents_resolved_total",
		Help: "Overdue incidents resolved by the reconciliation sweep.",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cronwatch_sweep_duration_seconds",
		Help:    "Duration of overdue reconciliation sweeps.",
		Buckets: prometheus.DefBuckets,
	})
)
