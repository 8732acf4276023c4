// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Intake outcomes used as the "outcome" label.
const (
	OutcomeAccepted     = "accepted"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeRateLimited  = "rate_limited"
	OutcomeFailed       = "failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	reportsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashdesk_reports_received_total",
			Help: "Error report submissions by outcome",
		},
		[]string{"outcome"},
	)

	reportsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashdesk_reports_resolved_total",
			Help: "Error reports marked resolved through bulk resolve",
		},
	)
)

// RequestStarted marks one more request in flight and returns a func that records it as done.
func RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpRequestsInFlight.Inc()
	return func(method, route string, status int) {
		httpRequestsInFlight.Dec()
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordIntake(outcome string) {
	reportsReceived.WithLabelValues(outcome).Inc()
}

func RecordResolved(n int64) {
	if n > 0 {
		reportsResolved.Add(float64(n))
	}
}
