// Package metrics holds the Prometheus collectors shared by the upstream
// clients, the price cache, the rate limiter and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_upstream_requests_total",
			Help: "Upstream explorer and oracle requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_upstream_request_duration_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_rate_limit_wait_seconds",
			Help:    "Time spent waiting on a provider token bucket",
			Buckets: []float64{0, .01, .05, .1, .5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	PriceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_price_cache_lookups_total",
			Help: "Price cache lookups by kind and outcome (hit, miss, shared)",
		},
		[]string{"kind", "outcome"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_pages_fetched_total",
			Help: "Pages fetched by the pagination driver per endpoint label",
		},
		[]string{"endpoint"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of report API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Report API request duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		},
		[]string{"method", "route"},
	)
)
