// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "econboard_config_reloads_total",
		Help: "Configuration reload attempts by result",
	}, []string{"result"}) // result=success|failure

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "econboard_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	manifestSlots = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "econboard_manifest_slots",
		Help: "Slots declared by the active manifest",
	}, []string{"kind"})
)

// RecordConfigReload records a reload attempt.
func RecordConfigReload(ok bool) {
	if ok {
		configReloadsTotal.WithLabelValues("success").Inc()
		return
	}
	configReloadsTotal.WithLabelValues("failure").Inc()
}

// IncConfigValidationError counts a rejected configuration.
func IncConfigValidationError() {
	configValidationErrors.Inc()
}

// SetManifestSlots publishes the slot counts of the active manifest.
func SetManifestSlots(charts, dashboards int) {
	manifestSlots.WithLabelValues("chart").Set(float64(charts))
	manifestSlots.WithLabelValues("dashboard").Set(float64(dashboards))
}
