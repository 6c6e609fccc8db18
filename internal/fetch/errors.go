// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fetch

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks by callers.
	ErrNotFound    = errors.New("fetch: resource not found")
	ErrStatus      = errors.New("fetch: non-success status")
	ErrTransport   = errors.New("fetch: transport failure")
	ErrCircuitOpen = errors.New("fetch: origin circuit open")
	ErrTooLarge    = errors.New("fetch: response body too large")
	ErrInvalidPath = errors.New("fetch: invalid resource path")
)

// Error wraps a sentinel with the resource that failed.
type Error struct {
	Sentinel error
	Resource string // path as declared by the caller
	URL      string // resolved location
	Status   int
	Err      error // lower-level cause, e.g. a net.Error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Sentinel, e.Resource)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// IsStatus reports whether err came from a non-success HTTP response.
func IsStatus(err error) bool {
	return errors.Is(err, ErrStatus) || errors.Is(err, ErrNotFound)
}

// IsTransport reports whether the origin could not be reached.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrCircuitOpen)
}

// countsAgainstOrigin decides which failures trip the origin breaker.
// Client errors (4xx) mean the origin is healthy.
func countsAgainstOrigin(err error) bool {
	var fe *Error
	if errors.As(err, &fe) && fe.Status > 0 {
		return fe.Status >= 500
	}
	return err != nil
}
