// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"sort"
	"sync"
	"time"
)

// Registry hands out one breaker per origin.
type Registry struct {
	mu           sync.Mutex
	breakers     map[string]*CircuitBreaker
	threshold    int
	resetTimeout time.Duration
	opts         []Option
}

// NewRegistry creates a registry whose breakers share the given settings.
func NewRegistry(threshold int, resetTimeout time.Duration, opts ...Option) *Registry {
	return &Registry{
		breakers:     make(map[string]*CircuitBreaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
		opts:         opts,
	}
}

// For returns the breaker for origin, creating it on first use.
func (r *Registry) For(origin string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[origin]; ok {
		return cb
	}
	cb := NewCircuitBreaker(origin, r.threshold, r.resetTimeout, r.opts...)
	r.breakers[origin] = cb
	return cb
}

// States reports every known origin's state, sorted by origin.
func (r *Registry) States() []OriginState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]OriginState, 0, len(r.breakers))
	for origin, cb := range r.breakers {
		out = append(out, OriginState{Origin: origin, State: cb.State()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// OriginState pairs an origin with its breaker state.
type OriginState struct {
	Origin string `json:"origin"`
	State  State  `json:"state"`
}
