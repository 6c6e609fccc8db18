// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the chart service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotRendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_slot_renders_total",
		Help: "Slot render attempts by slot kind and outcome",
	}, []string{"kind", "outcome"}) // kind=chart|dashboard, outcome=rendered|failed|skipped|abandoned

	slotFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_slot_failures_total",
		Help: "Slot failures by failure class",
	}, []string{"failure"}) // failure=load|transport|parse|render

	slotRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "econboard_slot_render_duration_seconds",
		Help:    "Time spent resolving, composing and rendering one slot",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"kind"})

	compositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_compositions_total",
		Help: "Page compositions by result",
	}, []string{"result"}) // result=clean|degraded

	compositionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "econboard_composition_duration_seconds",
		Help:    "Wall time of a full page composition",
		Buckets: prometheus.DefBuckets,
	})

	lastCompositionFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "econboard_last_composition_failed_slots",
		Help: "Number of slots that showed a diagnostic in the last composition",
	})
)

// RecordSlotOutcome records one slot attempt.
func RecordSlotOutcome(kind, outcome, failure string, d time.Duration) {
	slotRendersTotal.WithLabelValues(kind, outcome).Inc()
	if failure != "" {
		slotFailuresTotal.WithLabelValues(failure).Inc()
	}
	slotRenderDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordComposition records a finished page composition.
func RecordComposition(d time.Duration, failedSlots int) {
	result := "clean"
	if failedSlots > 0 {
		result = "degraded"
	}
	compositionsTotal.WithLabelValues(result).Inc()
	compositionDuration.Observe(d.Seconds())
	lastCompositionFailures.Set(float64(failedSlots))
}
