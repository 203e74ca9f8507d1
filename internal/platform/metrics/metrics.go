package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TransfersCreated  prometheus.Counter
	TransfersApproved prometheus.Counter
	ExportAttempts    prometheus.Counter
	ExportFailures    prometheus.Counter
	ExportsCompleted  prometheus.Counter
	WebhooksReceived  prometheus.Counter
	RequestLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics against a specific registerer so tests can use
// isolated registries.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_transfers_created_total",
			Help: "Total number of transfer requests created",
		}),
		TransfersApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_transfers_approved_total",
			Help: "Total number of transfers administratively approved",
		}),
		ExportAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_export_attempts_total",
			Help: "Total number of regulatory export attempts",
		}),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_export_failures_total",
			Help: "Total number of failed regulatory export attempts",
		}),
		ExportsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_exports_completed_total",
			Help: "Total number of transfers confirmed exported",
		}),
		WebhooksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "fedoffice_webhooks_received_total",
			Help: "Total number of reconciliation webhooks accepted",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fedoffice_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
