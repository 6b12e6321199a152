// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_messages_received_total",
			Help: "Total number of inbound webhook messages by message type",
		},
		[]string{"msgtype"},
	)

	KeywordsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyword_matches_total",
			Help: "Total number of inbound messages that matched a keyword",
		},
		[]string{"keyword"},
	)

	DeliveriesAttempted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_deliveries_attempted_total",
			Help: "Total number of alert deliveries attempted per channel",
		},
		[]string{"channel", "status"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "alert_delivery_duration_seconds",
			Help: "Time taken to deliver alerts via outbound channels",
		},
		[]string{"channel"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests received",
		},
		[]string{"endpoint", "status", "method"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)
