// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_http_requests_total",
		Help: "Total number of HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "econboard_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econboard_http_requests_in_flight",
		Help: "Number of HTTP requests currently being served",
	})
)

// ObserveHTTPRequest records a finished request. route must be a pattern, not a raw path.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncHTTPInFlight marks a request as started.
func IncHTTPInFlight() { httpInFlight.Inc() }

// DecHTTPInFlight marks a request as finished.
func DecHTTPInFlight() { httpInFlight.Dec() }

var fileRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "econboard_file_requests_total",
	Help: "Data file requests by result (allowed, not_modified, not_found, path_escape, directory_listing, method_not_allowed, internal_error)",
}, []string{"result"})

// RecordFileRequest counts a data file request by its result.
func RecordFileRequest(result string) {
	fileRequestsTotal.WithLabelValues(result).Inc()
}
