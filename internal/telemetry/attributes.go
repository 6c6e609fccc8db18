// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across the service.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	SlotSelectorKey = "slot.selector"
	SlotKindKey     = "slot.kind"
	SlotOutcomeKey  = "slot.outcome"
	SlotFailureKey  = "slot.failure"

	ResourcePathKey  = "resource.path"
	ResourceCacheKey = "resource.cache"

	RunIDKey       = "composition.run_id"
	RunSlotsKey    = "composition.slots"
	RunFailuresKey = "composition.failures"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SlotAttributes describes a slot span.
func SlotAttributes(selector, kind, resourcePath string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SlotSelectorKey, selector),
		attribute.String(SlotKindKey, kind),
	}
	if resourcePath != "" {
		attrs = append(attrs, attribute.String(ResourcePathKey, resourcePath))
	}
	return attrs
}

// CompositionAttributes describes a composition span.
func CompositionAttributes(runID string, slots, failures int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.Int(RunSlotsKey, slots),
		attribute.Int(RunFailuresKey, failures),
	}
}

// ErrorAttributes marks a span as failed with a classification.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError attaches err to span and marks it failed.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(ErrorAttributes(errorType)...)
}
