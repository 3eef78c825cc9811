// Package metrics holds the Prometheus collectors of the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts the handled API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamemixer_http_requests_total",
			Help: "Number of handled HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration measures the time needed to answer API requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamemixer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// MediaCallsTotal counts the calls to the media store. Outcome is one of "success", "failure" or "rejected"
	MediaCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamemixer_media_calls_total",
			Help: "Number of calls to the media store by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// MediaBreakerState is the state of the media store's circuit breaker (0 closed, 1 half-open, 2 open)
	MediaBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamemixer_media_breaker_state",
			Help: "State of the media store circuit breaker: 0 closed, 1 half-open, 2 open",
		},
	)

	// MailsSentTotal counts the notification mails by outcome
	MailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamemixer_mails_sent_total",
			Help: "Number of notification mails by outcome",
		},
		[]string{"outcome"},
	)
)
