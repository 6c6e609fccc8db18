// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"errors"
	"fmt"

	"github.com/ManuGH/econboard/internal/fetch"
)

// FailureKind classifies why a slot could not be rendered.
type FailureKind string

const (
	LoadFailure      FailureKind = "load"      // non-success response
	TransportFailure FailureKind = "transport" // origin unreachable or breaker open
	ParseFailure     FailureKind = "parse"     // body is not the expected JSON
	RenderFailure    FailureKind = "render"    // render boundary rejected the spec
)

// Failure is the single error type a slot can end with.
type Failure struct {
	Kind     FailureKind
	Resource string // path the diagnostic names
	Status   int    // HTTP status for LoadFailure
	Err      error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s failure: %s", f.Kind, f.Resource)
	if f.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, f.Status)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// classifyFetch maps a fetch error onto the failure taxonomy.
func classifyFetch(resource string, err error) *Failure {
	f := &Failure{Kind: TransportFailure, Resource: resource, Err: err}

	var fe *fetch.Error
	if errors.As(err, &fe) {
		f.Status = fe.Status
	}
	switch {
	case fetch.IsStatus(err):
		f.Kind = LoadFailure
	case errors.Is(err, fetch.ErrInvalidPath):
		f.Kind = LoadFailure
	case errors.Is(err, fetch.ErrTooLarge):
		f.Kind = ParseFailure
		f.Status = 0
	}
	return f
}

// diagnostic is the text shown in place of a failed chart.
func diagnostic(f *Failure, requestID string) string {
	var what string
	switch f.Kind {
	case LoadFailure:
		what = "Could not load " + f.Resource
		if f.Status > 0 {
			what = fmt.Sprintf("%s (HTTP %d)", what, f.Status)
		}
	case TransportFailure:
		what = "Could not reach the data source for " + f.Resource
	case ParseFailure:
		what = "Could not read " + f.Resource + " as JSON"
		if errors.Is(f.Err, fetch.ErrTooLarge) {
			what = "Could not read " + f.Resource + " (response too large)"
		}
	default:
		what = "Could not draw the chart from " + f.Resource
	}

	msg := what + ". Check the server log for details"
	if requestID != "" {
		msg += " (request " + requestID + ")"
	}
	return msg + "."
}
