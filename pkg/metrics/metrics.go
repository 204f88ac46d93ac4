package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	MeasurementsProcessed prometheus.Counter
	MeasurementsFailed    prometheus.Counter
	ProcessingLatency     prometheus.Histogram
	NotificationsDropped  prometheus.Counter
	BusReconnects         prometheus.Counter

	AlertsCreated         *prometheus.CounterVec
	ReferralsOpened       *prometheus.CounterVec
	ReferralsDeduplicated prometheus.Counter
}

// New creates and registers all pipeline metrics
func New(namespace string) *Metrics {
	return &Metrics{
		MeasurementsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_processed_total",
			Help:      "Total number of measurements processed by the ingestion worker",
		}),
		MeasurementsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_failed_total",
			Help:      "Total number of measurements whose processing failed",
		}),
		ProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "measurement_processing_duration_seconds",
			Help:      "Time spent processing one measurement notification",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Total number of malformed notifications dropped",
		}),
		BusReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_reconnects_total",
			Help:      "Total number of message bus reconnection attempts",
		}),
		AlertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created, by severity",
		}, []string{"severity"}),
		ReferralsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_opened_total",
			Help:      "Total number of referrals opened, by department code",
		}, []string{"department"}),
		ReferralsDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_deduplicated_total",
			Help:      "Total number of referral opens resolved to an existing pending referral",
		}),
	}
}
