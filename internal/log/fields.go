// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldRunID         = "run_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Chart fields
	FieldSelector  = "selector"
	FieldResource  = "resource"
	FieldFailure   = "failure"
	FieldOutcome   = "outcome"
	FieldDashboard = "dashboard"

	// Path / URL fields
	FieldPath    = "path"
	FieldOrigin  = "origin"
	FieldStatus  = "status"
	FieldLatency = "duration_ms"
)
