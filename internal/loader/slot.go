// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"time"

	"github.com/ManuGH/econboard/internal/chartspec"
	"github.com/ManuGH/econboard/internal/history"
	"github.com/ManuGH/econboard/internal/manifest"
)

// Slot kinds as reported in outcomes and metrics.
const (
	KindChart     = "chart"
	KindDashboard = "dashboard"
)

// Slot is one chart insertion point. Slots are never modified by the loader;
// an inline Spec is cloned before anything is written to it.
type Slot struct {
	Selector  string
	Spec      chartspec.Document // inline source
	SpecURL   string             // fetched source, used when Spec is nil
	DataURL   string
	Width     chartspec.Size
	Height    chartspec.Size
	Dashboard int // 1..N inside the dashboard set, 0 otherwise
}

// Kind reports whether the slot belongs to the dashboard set.
func (s Slot) Kind() string {
	if s.Dashboard > 0 {
		return KindDashboard
	}
	return KindChart
}

// source names the specification origin for diagnostics.
func (s Slot) source() string {
	if s.Spec != nil {
		return "inline specification for " + s.Selector
	}
	return s.SpecURL
}

// DashboardSet is the ordered run of dashboard slots.
type DashboardSet struct {
	Slots []Slot
}

// Status of a slot after a composition.
type Status string

const (
	StatusRendered  Status = history.OutcomeRendered
	StatusFailed    Status = history.OutcomeFailed
	StatusSkipped   Status = history.OutcomeSkipped   // target absent from the page
	StatusAbandoned Status = history.OutcomeAbandoned // page deadline reached first
)

// Outcome is what happened to one slot.
type Outcome struct {
	Selector  string
	Kind      string
	Status    Status
	Title     string
	Failure   *Failure
	StartedAt time.Time
	Duration  time.Duration
}

// Result is one composition.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []Outcome
}

// Count returns how many outcomes have status s.
func (r Result) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Outcome returns the outcome recorded for selector.
func (r Result) Outcome(selector string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Selector == selector {
			return o, true
		}
	}
	return Outcome{}, false
}

// Plan turns a manifest into independent slots and the dashboard set.
func Plan(m *manifest.Manifest) ([]Slot, DashboardSet) {
	slots := make([]Slot, 0, len(m.Slots))
	for _, s := range m.Slots {
		slots = append(slots, Slot{
			Selector: s.Selector,
			Spec:     s.Spec,
			SpecURL:  s.SpecURL,
			DataURL:  s.DataURL,
			Width:    s.Width,
			Height:   s.Height,
		})
	}
	return slots, NewDashboardSet(m.Dashboards)
}

// NewDashboardSet expands a manifest dashboard definition into slots 1..Count.
func NewDashboardSet(d *manifest.DashboardSet) DashboardSet {
	if d == nil {
		return DashboardSet{}
	}
	set := DashboardSet{Slots: make([]Slot, 0, d.Count)}
	for n := 1; n <= d.Count; n++ {
		set.Slots = append(set.Slots, Slot{
			Selector:  d.SelectorFor(n),
			Spec:      d.Template,
			DataURL:   d.DataURLFor(n),
			Width:     d.Width,
			Height:    d.Height,
			Dashboard: n,
		})
	}
	return set
}

// History converts the result into history store rows.
func (r Result) History() (history.Run, []history.Entry) {
	run := history.Run{
		ID:        r.RunID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Slots:     len(r.Outcomes),
		Failed:    r.Count(StatusFailed),
		Abandoned: r.Count(StatusAbandoned),
	}
	entries := make([]history.Entry, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		e := history.Entry{
			RunID:     r.RunID,
			Selector:  o.Selector,
			Kind:      o.Kind,
			Outcome:   string(o.Status),
			Duration:  o.Duration,
			StartedAt: o.StartedAt,
		}
		if o.Failure != nil {
			e.Failure = string(o.Failure.Kind)
			e.Resource = o.Failure.Resource
			e.Status = o.Failure.Status
			if o.Failure.Err != nil {
				e.Message = o.Failure.Err.Error()
			}
		}
		entries = append(entries, e)
	}
	return run, entries
}
