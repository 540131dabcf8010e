package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var SMSRateLimitedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sms_rate_limited_total",
		Help: "Total number of inbound SMS commands rejected due to rate limiting",
	},
)

var CommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "commands_total",
		Help: "Total number of operator commands submitted",
	},
	[]string{"type", "success"},
)

var MessagesShiftedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "messages_shifted_total",
		Help: "Total number of pending messages moved by DELAY commands",
	},
)

var DeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Total number of per-recipient send attempts",
	},
	[]string{"outcome"},
)

var DeliveryCallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "delivery_callbacks_total",
		Help: "Total number of provider delivery callbacks applied",
	},
	[]string{"status"},
)

var DeliveryPollDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "delivery_poll_duration_seconds",
		Help:    "Duration of one delivery worker polling pass",
		Buckets: prometheus.DefBuckets,
	},
)

var (
	apiOnce    sync.Once
	workerOnce sync.Once
)

func InitAPIMetrics() {
	apiOnce.Do(func() {
		prometheus.MustRegister(HttpRequestsTotal)
		prometheus.MustRegister(HttpRequestDuration)
		prometheus.MustRegister(SMSRateLimitedTotal)
		prometheus.MustRegister(CommandsTotal)
		prometheus.MustRegister(MessagesShiftedTotal)
	})
}

func InitWorkerMetrics() {
	workerOnce.Do(func() {
		prometheus.MustRegister(DeliveriesTotal)
		prometheus.MustRegister(DeliveryCallbacksTotal)
		prometheus.MustRegister(DeliveryPollDuration)
	})
}
