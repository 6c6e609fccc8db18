// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSlotOutcome(t *testing.T) {
	before := testutil.ToFloat64(slotRendersTotal.WithLabelValues("dashboard", "failed"))
	beforeFail := testutil.ToFloat64(slotFailuresTotal.WithLabelValues("load"))

	RecordSlotOutcome("dashboard", "failed", "load", 12*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(slotRendersTotal.WithLabelValues("dashboard", "failed")))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(slotFailuresTotal.WithLabelValues("load")))
}

func TestRecordComposition(t *testing.T) {
	RecordComposition(time.Second, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(lastCompositionFailures))

	RecordComposition(time.Second, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(lastCompositionFailures))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("data-origin", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("data-origin", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("data-origin", "closed")))

	SetCircuitBreakerState("data-origin", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("data-origin", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("data-origin", "closed")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/", "200"))
	ObserveHTTPRequest("GET", "/", 200, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/", "200")))
}

func TestRecordCacheLookupIsGathered(t *testing.T) {
	RecordCacheLookup("memory", true)
	RecordCacheLookup("memory", false)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var family *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "econboard_cache_lookups_total" {
			family = mf
		}
	}
	require.NotNil(t, family, "cache lookup family must be registered")

	results := map[string]bool{}
	for _, m := range family.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "result" {
				results[lp.GetValue()] = true
			}
		}
	}
	assert.True(t, results["hit"])
	assert.True(t, results["miss"])
}
