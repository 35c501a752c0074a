// Package observability registers the prometheus metrics exposed by the
// integration.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activitiesSyncedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitbit_integration",
		Subsystem: "sync",
		Name:      "activities_synced_total",
		Help:      "Number of activities fully imported, per sync loop.",
	}, []string{"loop"})

	contributionsSavedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitbit_integration",
		Subsystem: "sync",
		Name:      "contributions_saved_total",
		Help:      "Number of contributions written to the contributions store, per sync loop.",
	}, []string{"loop"})

	tickErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitbit_integration",
		Subsystem: "sync",
		Name:      "tick_errors_total",
		Help:      "Number of aborted sync ticks, per sync loop.",
	}, []string{"loop"})

	rateLimitCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitbit_integration",
		Subsystem: "sync",
		Name:      "rate_limit_hits_total",
		Help:      "Number of rate-limit responses received from the provider.",
	})

	webhookNotificationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitbit_integration",
		Subsystem: "webhook",
		Name:      "notifications_total",
		Help:      "Number of activity update notifications received.",
	})

	lastSyncedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitbit_integration",
		Subsystem: "sync",
		Name:      "last_activity_synced_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity import.",
	})
)

func init() {
	prometheus.MustRegister(
		activitiesSyncedCounter,
		contributionsSavedCounter,
		tickErrorCounter,
		rateLimitCounter,
		webhookNotificationCounter,
		lastSyncedGauge,
	)
}

// RecordActivitySynced bumps the import counters for a loop.
func RecordActivitySynced(loop string, contributions int) {
	activitiesSyncedCounter.WithLabelValues(loop).Inc()
	contributionsSavedCounter.WithLabelValues(loop).Add(float64(contributions))
	lastSyncedGauge.Set(float64(time.Now().Unix()))
}

// RecordTickError counts an aborted tick for a loop.
func RecordTickError(loop string) {
	tickErrorCounter.WithLabelValues(loop).Inc()
}

// RecordRateLimitHit counts a throttled provider response.
func RecordRateLimitHit() {
	rateLimitCounter.Inc()
}

// RecordWebhookNotification counts a received update notification.
func RecordWebhookNotification() {
	webhookNotificationCounter.Inc()
}
