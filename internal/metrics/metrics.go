// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	STKPushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_stk_push_requests_total",
			Help: "STK push initiations by result",
		},
		[]string{"status"},
	)

	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_callbacks_total",
			Help: "Gateway callbacks by outcome",
		},
		[]string{"outcome"},
	)

	SideEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_side_effects_total",
			Help: "Best-effort post-payment tasks by task and result",
		},
		[]string{"task", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donation_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
