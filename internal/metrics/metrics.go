// Package metrics exports the agent's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mabott/snmp-agent-app/internal/monitor"
)

var (
	// Alert lifecycle metrics
	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qsnmp_alerts_active",
			Help: "Number of currently alerting conditions by category",
		},
		[]string{"category"},
	)

	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsnmp_alerts_fired_total",
			Help: "Total number of alerts fired by category",
		},
		[]string{"category"},
	)

	AlertsClearedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsnmp_alerts_cleared_total",
			Help: "Total number of alerts cleared by category",
		},
		[]string{"category"},
	)

	// Poll loop metrics
	PollTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qsnmp_poll_ticks_total",
			Help: "Total number of completed poll cycles",
		},
	)

	PollTickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qsnmp_poll_tick_duration_seconds",
			Help:    "Duration of one poll cycle including dispatch",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Notification channel metrics
	ChannelFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qsnmp_notification_failures_total",
			Help: "Total number of failed notification deliveries by channel",
		},
		[]string{"channel"},
	)
)

// RecordAlertFired records a condition entering the alerting state.
func RecordAlertFired(event monitor.Event) {
	AlertsFiredTotal.WithLabelValues(string(event.Key.Category)).Inc()
	AlertsActive.WithLabelValues(string(event.Key.Category)).Inc()
}

// RecordAlertCleared records a condition returning to clear.
func RecordAlertCleared(event monitor.Event) {
	AlertsClearedTotal.WithLabelValues(string(event.Key.Category)).Inc()
	AlertsActive.WithLabelValues(string(event.Key.Category)).Dec()
}

// RecordTickComplete records one finished poll cycle.
func RecordTickComplete(elapsed time.Duration) {
	PollTicksTotal.Inc()
	PollTickDurationSeconds.Observe(elapsed.Seconds())
}

// RecordChannelFailure records a failed trap or email delivery.
func RecordChannelFailure(channel string) {
	ChannelFailuresTotal.WithLabelValues(channel).Inc()
}
