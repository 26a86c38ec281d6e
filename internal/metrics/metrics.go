// Package metrics defines the Prometheus collectors of the tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "perks"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	Expansions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expansions_total",
		Help:      "Credit expansions by result.",
	}, []string{"result"})

	ExpansionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "expansion_duration_seconds",
		Help:      "Time spent expanding one user and year.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	ExpandedInstances = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "expanded_instances",
		Help:      "Number of instances produced by one expansion.",
		Buckets:   prometheus.LinearBuckets(0, 20, 8),
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Instance cache lookups by outcome.",
	}, []string{"outcome"})

	CreditStateWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credit_state_writes_total",
		Help:      "Credit entry writes by result.",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Credit state change events by result.",
	}, []string{"result"})

	SheetExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sheet_exported_rows_total",
		Help:      "Usage rows exported to the spreadsheet by result.",
	}, []string{"result"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_sent_total",
		Help:      "Reminder digests by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	SuspiciousRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_suspicious_requests_total",
		Help:      "Requests flagged by the detector, by reason.",
	}, []string{"reason"})
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// ObserveExpansion records one expansion.
func ObserveExpansion(started time.Time, instances int, err error) {
	Expansions.WithLabelValues(Result(err)).Inc()
	if err == nil {
		ExpansionDuration.Observe(time.Since(started).Seconds())
		ExpandedInstances.Observe(float64(instances))
	}
}

// StatusClass turns 404 into "4xx".
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
