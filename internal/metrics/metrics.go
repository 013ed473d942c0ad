// Package metrics defines Prometheus metrics for the proposal engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proposals_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_http_requests_total",
			Help: "HTTP requests by route, status and acting role",
		},
		[]string{"method", "path", "status", "role"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposals_transitions_total",
			Help: "Engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	LeaseWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proposals_lease_wait_seconds",
			Help:    "Time spent waiting for the per-proposal lease",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
	)

	NotifyQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proposals_notify_queue_depth",
			Help: "Current notification queue depth",
		},
	)

	NotifyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proposals_notify_dropped_total",
			Help: "Notifications dropped because the queue was full",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proposals_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	ExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proposals_expired_total",
			Help: "Proposals cancelled by the expiration sweep",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		TransitionsTotal, LeaseWaitSeconds,
		NotifyQueueDepth, NotifyDropped, WSConnections,
		ExpiredTotal,
	)
}
