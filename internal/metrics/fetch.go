// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_fetch_requests_total",
		Help: "Outbound resource fetches by result",
	}, []string{"result"}) // result=ok|status|transport|breaker_open

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "econboard_fetch_duration_seconds",
		Help:    "Outbound resource fetch latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	fetchSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econboard_fetch_shared_total",
		Help: "Fetches answered by an in-flight request for the same resource",
	})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_cache_lookups_total",
		Help: "Resource cache lookups by backend and result",
	}, []string{"backend", "result"}) // result=hit|miss
)

// RecordFetch records one outbound fetch.
func RecordFetch(result string, d time.Duration) {
	fetchRequestsTotal.WithLabelValues(result).Inc()
	fetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordFetchShared counts a singleflight-shared fetch.
func RecordFetchShared() {
	fetchSharedTotal.Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(backend, result).Inc()
}
