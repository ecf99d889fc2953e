package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_scan_outcomes_total",
			Help: "Classified scans by outcome",
		},
		[]string{"outcome"},
	)

	commitOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_commits_total",
			Help: "Check-in commits by outcome",
		},
		[]string{"outcome"},
	)

	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_sends_total",
			Help: "Outbound invitations by channel and status",
		},
		[]string{"channel", "status"},
	)

	bundleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bundle_generation_duration_seconds",
			Help:    "Time spent generating QR bundles",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"format"},
	)

	realtimeReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnects_total",
			Help: "Change-notification listener reconnect attempts",
		},
	)

	realtimeApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_changes_applied_total",
			Help: "Change notifications merged into local state",
		},
		[]string{"table", "type"},
	)
)

func TrackScan(outcome string) {
	scanOutcomes.WithLabelValues(outcome).Inc()
}

func TrackCommit(outcome string) {
	commitOutcomes.WithLabelValues(outcome).Inc()
}

func TrackMessage(channel, status string) {
	messagesSent.WithLabelValues(channel, status).Inc()
}

func TrackBundle(format string, d time.Duration) {
	bundleDuration.WithLabelValues(format).Observe(d.Seconds())
}

func TrackReconnect() {
	realtimeReconnects.Inc()
}

func TrackRealtimeChange(table, changeType string) {
	realtimeApplied.WithLabelValues(table, changeType).Inc()
}
