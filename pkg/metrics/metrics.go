// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var RequestsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total authenticated requests admitted by the gateway",
	},
)

var BillableRequestsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_billable_requests_total",
		Help: "Total requests counted against tenant quotas",
	},
)

var AuthRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_auth_rejections_total",
		Help: "Gateway rejections by reason code",
	},
	[]string{"reason"},
)

var WebhookDispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_dispatch_total",
		Help: "Webhook dispatch attempts by outcome (success, retry, failed)",
	},
	[]string{"outcome"},
)

var RequestDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of authenticated gateway requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(BillableRequestsTotal)
	prometheus.MustRegister(AuthRejectionsTotal)
	prometheus.MustRegister(WebhookDispatchTotal)
	prometheus.MustRegister(RequestDurationSeconds)
}
