// README: Prometheus metrics for ingestion, transitions, ETA, and sessions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LocationSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "location_samples_total",
			Help: "Total number of driver location samples received",
		},
	)

	LocationSamplesRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "location_samples_rejected_total",
			Help: "Total number of location samples rejected by validation",
		},
	)

	LocationSamplesStaleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "location_samples_stale_total",
			Help: "Total number of accepted samples older than the staleness window",
		},
	)

	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total number of applied order status transitions",
		},
		[]string{"to"},
	)

	StatusTransitionsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_status_transitions_rejected_total",
			Help: "Total number of rejected order status transitions",
		},
	)

	ETAUpdatesPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eta_updates_published_total",
			Help: "Total number of ETA changes that exceeded the hysteresis threshold",
		},
	)

	ETAUpdatesSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eta_updates_suppressed_total",
			Help: "Total number of ETA recomputations suppressed by the threshold",
		},
	)

	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_failures_total",
			Help: "Total number of failed publishes to the notification transport",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_active_sessions",
			Help: "Number of tracking sessions currently held in the registry",
		},
	)
)

// Register registers all metrics with the default registry.
func Register() {
	prometheus.MustRegister(
		LocationSamplesTotal,
		LocationSamplesRejectedTotal,
		LocationSamplesStaleTotal,
		StatusTransitionsTotal,
		StatusTransitionsRejectedTotal,
		ETAUpdatesPublishedTotal,
		ETAUpdatesSuppressedTotal,
		NotifyFailuresTotal,
		ActiveSessions,
	)
}
