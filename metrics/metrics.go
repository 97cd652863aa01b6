package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values shared by the counters below.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	ConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_confirmations_total",
			Help: "Delivery confirmations by outcome (success, auth_failure, upload_failure, pod_failure, order_failure)",
		},
		[]string{"outcome"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_notifications_total",
			Help: "POD notification attempts by outcome (sent, skipped, already_sent, failure)",
		},
		[]string{"outcome"},
	)

	UploadBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_upload_bytes_total",
			Help: "Bytes uploaded to the object store by kind (photo, signature)",
		},
		[]string{"kind"},
	)

	ReconciledOrdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_reconciled_orders_total",
			Help: "Orders marked delivered by reconciliation after a failed status update",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ConfirmationsTotal,
		NotificationsTotal,
		UploadBytesTotal,
		ReconciledOrdersTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
