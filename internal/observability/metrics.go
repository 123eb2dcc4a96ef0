package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the alert core.
type Metrics struct {
	Polls         *prometheus.CounterVec // labels: outcome={success,error}
	SevereAlerts  prometheus.Counter
	AlertsLogged  prometheus.Counter
	Broadcasts    *prometheus.CounterVec // labels: outcome={sent,failed,not_ready}
	SMSOperations *prometheus.CounterVec // labels: op={subscribe,unsubscribe}, outcome={success,error}
	StoreErrors   *prometheus.CounterVec // labels: op={read,write}
	SoundFailures prometheus.Counter
}

func newCollectors() *Metrics {
	return &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "polls_total",
			Help:      "Feed polls by outcome.",
		}, []string{"outcome"}),
		SevereAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "severe_alerts_total",
			Help:      "Severe alerts raised from the feed.",
		}),
		AlertsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "alert_log_entries_total",
			Help:      "Dispatch-eligible entries appended to the alert log.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "broadcasts_total",
			Help:      "Broadcast send attempts by outcome.",
		}, []string{"outcome"}),
		SMSOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "sms_operations_total",
			Help:      "SMS gateway subscribe/unsubscribe calls by outcome.",
		}, []string{"op", "outcome"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "store_errors_total",
			Help:      "Persistent store failures (logged, never surfaced).",
		}, []string{"op"}),
		SoundFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_alert",
			Name:      "sound_failures_total",
			Help:      "Alert sounds that could not be played.",
		}),
	}
}

// NewMetrics creates and registers all collectors with the default registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.Polls,
		m.SevereAlerts,
		m.AlertsLogged,
		m.Broadcasts,
		m.SMSOperations,
		m.StoreErrors,
		m.SoundFailures,
	)
	return m
}

// NewMetricsForTesting returns unregistered collectors so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}
