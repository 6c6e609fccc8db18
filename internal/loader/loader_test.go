// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/econboard/internal/chartspec"
	"github.com/ManuGH/econboard/internal/fetch"
	"github.com/ManuGH/econboard/internal/history"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/manifest"
	"github.com/ManuGH/econboard/internal/page"
	"github.com/ManuGH/econboard/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFetcher serves canned bodies and records the order of requests.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	errs    map[string]error
	block   map[string]chan struct{}
	calls   []string
	onFetch func(resource string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string]string{},
		errs:   map[string]error{},
		block:  map[string]chan struct{}{},
	}
}

func (f *fakeFetcher) Get(ctx context.Context, resource string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, resource)
	body, ok := f.bodies[resource]
	err := f.errs[resource]
	wait := f.block[resource]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(resource)
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, &fetch.Error{Sentinel: fetch.ErrTransport, Resource: resource, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fetch.Error{Sentinel: fetch.ErrNotFound, Resource: resource, Status: http.StatusNotFound}
	}
	return []byte(body), nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// countingRenderer wraps VegaEmbed and counts calls.
type countingRenderer struct {
	calls atomic.Int32
	fail  map[string]error
	inner render.Renderer
}

func (r *countingRenderer) Embed(ctx context.Context, selector string, spec chartspec.Document, opts render.Options) (render.Fragment, error) {
	r.calls.Add(1)
	if err := r.fail[selector]; err != nil {
		return render.Fragment{}, err
	}
	return r.inner.Embed(ctx, selector, spec, opts)
}

func newRenderer() *countingRenderer {
	return &countingRenderer{fail: map[string]error{}, inner: render.NewVegaEmbed()}
}

const testPage = `<!DOCTYPE html><html><body>
<div id="vis1"><p>loading</p></div>
<div id="vis4"><p>loading</p></div>
<div id="dashboard1"></div><div id="dashboard2"></div><div id="dashboard3"></div>
<span id="year">2000</span>
</body></html>`

func newPage(t *testing.T) *page.Page {
	t.Helper()
	pg, err := page.ParseBytes([]byte(testPage))
	require.NoError(t, err)
	return pg
}

func newLoader(t *testing.T, f Fetcher, r render.Renderer, opts ...func(*Options)) *Loader {
	t.Helper()
	nop := zerolog.Nop()
	o := Options{Fetcher: f, Renderer: r, Logger: &nop}
	for _, fn := range opts {
		fn(&o)
	}
	l, err := New(o)
	require.NoError(t, err)
	return l
}

func inner(t *testing.T, pg *page.Page, selector string) string {
	t.Helper()
	html, ok := pg.InnerHTML(selector)
	require.True(t, ok, selector)
	return html
}

func TestNew_RequiresFetcher(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoFetcher)
}

func TestRenderSlot_AbsentTargetIsNoOp(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["graphs/a.json"] = `{"mark":"bar"}`
	r := newRenderer()
	l := newLoader(t, f, r)
	pg := newPage(t)

	out := l.RenderSlot(context.Background(), pg, Slot{Selector: "#vis9", SpecURL: "graphs/a.json", DataURL: "data/a.json"})

	assert.Equal(t, StatusSkipped, out.Status)
	assert.Empty(t, f.Calls(), "no fetch for an absent target")
	assert.Equal(t, int32(0), r.calls.Load(), "no render call for an absent target")
}

func TestRenderSlot_SpecURL(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["graphs/unemployment.json"] = `{"mark":"line","title":"Unemployment"}`
	r := newRenderer()
	l := newLoader(t, f, r)
	pg := newPage(t)

	out := l.RenderSlot(context.Background(), pg, Slot{
		Selector: "#vis1",
		SpecURL:  "graphs/unemployment.json",
		Width:    chartspec.Container(),
		Height:   chartspec.Pixels(300),
	})

	require.Equal(t, StatusRendered, out.Status, "%v", out.Failure)
	assert.Equal(t, "Unemployment", out.Title)
	html := inner(t, pg, "#vis1")
	assert.Contains(t, html, `data-vega-embed="#vis1"`)
	assert.Contains(t, html, `"width":"container"`)
	assert.Contains(t, html, `"renderer":"svg"`)
	assert.Contains(t, html, `"actions":false`)
	assert.NotContains(t, html, "loading")
}

func TestRenderSlot_Non2xxShowsDiagnosticWithPath(t *testing.T) {
	f := newFakeFetcher() // everything 404s
	l := newLoader(t, f, newRenderer())
	pg := newPage(t)

	ctx := xglog.ContextWithRequestID(context.Background(), "req-42")
	out := l.RenderSlot(ctx, pg, Slot{Selector: "#vis4", SpecURL: "graphs/ethiopia_chart.json"})

	require.Equal(t, StatusFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, LoadFailure, out.Failure.Kind)
	assert.Equal(t, http.StatusNotFound, out.Failure.Status)

	html := inner(t, pg, "#vis4")
	assert.Contains(t, html, "graphs/ethiopia_chart.json")
	assert.Contains(t, html, `class="chart-error"`)
	assert.Contains(t, html, "req-42")
	assert.NotContains(t, html, "loading")
}

func TestRenderSlot_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fakeFetcher, r *countingRenderer)
		slot     Slot
		kind     FailureKind
		resource string
	}{
		{
			name: "transport",
			setup: func(f *fakeFetcher, _ *countingRenderer) {
				f.errs["graphs/a.json"] = &fetch.Error{Sentinel: fetch.ErrTransport, Resource: "graphs/a.json", Err: errors.New("connection refused")}
			},
			slot:     Slot{Selector: "#vis1", SpecURL: "graphs/a.json"},
			kind:     TransportFailure,
			resource: "graphs/a.json",
		},
		{
			name: "breaker open",
			setup: func(f *fakeFetcher, _ *countingRenderer) {
				f.errs["graphs/a.json"] = &fetch.Error{Sentinel: fetch.ErrCircuitOpen, Resource: "graphs/a.json"}
			},
			slot:     Slot{Selector: "#vis1", SpecURL: "graphs/a.json"},
			kind:     TransportFailure,
			resource: "graphs/a.json",
		},
		{
			name: "spec not json",
			setup: func(f *fakeFetcher, _ *countingRenderer) {
				f.bodies["graphs/a.json"] = `<html>oops</html>`
			},
			slot:     Slot{Selector: "#vis1", SpecURL: "graphs/a.json"},
			kind:     ParseFailure,
			resource: "graphs/a.json",
		},
		{
			name: "data file malformed",
			setup: func(f *fakeFetcher, _ *countingRenderer) {
				f.bodies["data/d.json"] = `{"data": [{"date": "2020"`
			},
			slot:     Slot{Selector: "#vis1", Spec: chartspec.Document{"mark": "bar"}, DataURL: "data/d.json"},
			kind:     ParseFailure,
			resource: "data/d.json",
		},
		{
			name: "data file missing",
			setup: func(_ *fakeFetcher, _ *countingRenderer) {
			},
			slot:     Slot{Selector: "#vis1", Spec: chartspec.Document{"mark": "bar"}, DataURL: "data/missing.json"},
			kind:     LoadFailure,
			resource: "data/missing.json",
		},
		{
			name: "render rejects",
			setup: func(f *fakeFetcher, _ *countingRenderer) {
				f.bodies["graphs/a.json"] = `{"title":"no view"}`
			},
			slot:     Slot{Selector: "#vis1", SpecURL: "graphs/a.json"},
			kind:     RenderFailure,
			resource: "graphs/a.json",
		},
		{
			name: "render rejects inline",
			setup: func(_ *fakeFetcher, r *countingRenderer) {
				r.fail["#vis1"] = errors.New("embed rejected")
			},
			slot:     Slot{Selector: "#vis1", Spec: chartspec.Document{"mark": "bar"}},
			kind:     RenderFailure,
			resource: "inline specification for #vis1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			r := newRenderer()
			tt.setup(f, r)
			pg := newPage(t)

			out := newLoader(t, f, r).RenderSlot(context.Background(), pg, tt.slot)

			require.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, tt.kind, out.Failure.Kind)
			assert.Equal(t, tt.resource, out.Failure.Resource)
			assert.Contains(t, inner(t, pg, "#vis1"), tt.resource)
		})
	}
}

func TestRenderSlot_DoesNotMutateInlineSpec(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["data/debt.json"] = `{"title":"Debt","data":[{"date":"2020-01-01","value":1}]}`

	spec := chartspec.Document{
		"mark":     map[string]any{"type": "bar"},
		"data":     map[string]any{"format": map[string]any{"type": "json", "property": "data"}},
		"encoding": map[string]any{"x": map[string]any{"field": "date"}},
	}
	before := spec.Clone()

	pg := newPage(t)
	out := newLoader(t, f, newRenderer()).RenderSlot(context.Background(), pg, Slot{
		Selector: "#vis1",
		Spec:     spec,
		DataURL:  "data/debt.json",
		Width:    chartspec.Container(),
	})

	require.Equal(t, StatusRendered, out.Status, "%v", out.Failure)
	assert.Equal(t, "Debt", out.Title, "data file title fills an untitled spec")
	if diff := cmp.Diff(before, spec); diff != "" {
		t.Fatalf("inline spec was mutated (-before +after):\n%s", diff)
	}
	html := inner(t, pg, "#vis1")
	assert.Contains(t, html, `"url":"data/debt.json"`)
	assert.Contains(t, html, `"property":"data"`, "other data keys survive")
}

func TestRenderDashboardSet_OrderAndIsolation(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["data/dashboard1.json"] = `{"data":[{"date":"2023-01-01","value":1,"indicator":"Debt"}]}`
	// dashboard2 is missing
	f.bodies["data/dashboard3.json"] = `{"data":[{"date":"2023-01-01","value":3}]}`

	set := NewDashboardSet(&manifest.DashboardSet{
		Count:    3,
		Selector: "#dashboard{n}",
		DataURL:  "data/dashboard{n}.json",
		Template: chartspec.Document{"mark": "line"},
	})

	pg := newPage(t)
	outs := newLoader(t, f, newRenderer()).RenderDashboardSet(context.Background(), pg, set)

	assert.Equal(t, []string{"data/dashboard1.json", "data/dashboard2.json", "data/dashboard3.json"}, f.Calls())
	require.Len(t, outs, 3)
	assert.Equal(t, StatusRendered, outs[0].Status)
	assert.Equal(t, "Debt", outs[0].Title)
	assert.Equal(t, StatusFailed, outs[1].Status)
	assert.Equal(t, StatusRendered, outs[2].Status, "failure at k must not stop k+1")
	assert.Equal(t, "Dashboard 3", outs[2].Title)

	assert.Contains(t, inner(t, pg, "#dashboard2"), "data/dashboard2.json")
	assert.Contains(t, inner(t, pg, "#dashboard1"), `"title":"Debt"`)
	for _, o := range outs {
		assert.Equal(t, KindDashboard, o.Kind)
	}
}

func TestRenderSlot_DataFilesAreNotSchemaChecked(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		title string
	}{
		{name: "string value", body: `{"data":[{"date":"2020-01-01","value":"3.5","indicator":"Debt"}]}`, title: "Debt"},
		{name: "null value", body: `{"data":[{"date":"2020-01-01","value":null,"indicator":"Debt"}]}`, title: "Debt"},
		{name: "numeric date", body: `{"data":[{"date":20200101,"value":1,"indicator":"Debt"}]}`, title: "Debt"},
		{name: "numeric indicator", body: `{"data":[{"date":"2020","value":1,"indicator":12}]}`, title: "Dashboard 1"},
		{name: "unknown fields", body: `{"region":"EU","data":[{"date":"2020","value":1,"extra":true}]}`, title: "Dashboard 1"},
		{name: "no data key", body: `{"title":7}`, title: "Dashboard 1"},
		{name: "bare array", body: `[{"date":"2020","value":"n/a","indicator":"Inflation"}]`, title: "Inflation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.bodies["data/dashboard1.json"] = tt.body
			pg := newPage(t)

			out := newLoader(t, f, newRenderer()).RenderSlot(context.Background(), pg, Slot{
				Selector:  "#dashboard1",
				Spec:      chartspec.Document{"mark": "line"},
				DataURL:   "data/dashboard1.json",
				Dashboard: 1,
			})

			require.Equal(t, StatusRendered, out.Status, "%v", out.Failure)
			assert.Equal(t, tt.title, out.Title)
			html := inner(t, pg, "#dashboard1")
			assert.Contains(t, html, "data-vega-embed")
			assert.NotContains(t, html, "chart-error")
		})
	}
}

func TestRenderSlot_NonStringFileTitleIsIgnored(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["data/debt.json"] = `{"title":{"text":"Debt"},"data":[]}`
	pg := newPage(t)

	out := newLoader(t, f, newRenderer()).RenderSlot(context.Background(), pg, Slot{
		Selector: "#vis1",
		Spec:     chartspec.Document{"mark": "bar"},
		DataURL:  "data/debt.json",
	})

	require.Equal(t, StatusRendered, out.Status, "%v", out.Failure)
	assert.Empty(t, out.Title)
}

func TestRenderSlot_MalformedDataFileDiagnostic(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["data/debt.json"] = `{"data": [`
	pg := newPage(t)

	out := newLoader(t, f, newRenderer()).RenderSlot(context.Background(), pg, Slot{
		Selector: "#vis1",
		Spec:     chartspec.Document{"mark": "bar"},
		DataURL:  "data/debt.json",
	})

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ParseFailure, out.Failure.Kind)
	assert.Contains(t, inner(t, pg, "#vis1"), "Could not read data/debt.json as JSON")
}

func TestRenderDashboardSet_Sequential(t *testing.T) {
	f := newFakeFetcher()
	var inFlight, maxInFlight atomic.Int32
	f.onFetch = func(string) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}
	for i := 1; i <= 3; i++ {
		f.bodies[fmt.Sprintf("data/dashboard%d.json", i)] = `{"data":[]}`
	}

	set := NewDashboardSet(&manifest.DashboardSet{
		Count: 3, Selector: "#dashboard{n}", DataURL: "data/dashboard{n}.json",
		Template: chartspec.Document{"mark": "line"},
	})
	newLoader(t, f, newRenderer()).RenderDashboardSet(context.Background(), newPage(t), set)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestCompose_IsolatesFailuresAndSetsYear(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["graphs/unemployment.json"] = `{"mark":"line"}`
	for i := 1; i <= 3; i++ {
		f.bodies[fmt.Sprintf("data/dashboard%d.json", i)] = `{"data":[]}`
	}

	m := &manifest.Manifest{
		Slots: []manifest.Slot{
			{Selector: "#vis1", SpecURL: "graphs/unemployment.json"},
			{Selector: "#vis4", SpecURL: "graphs/ethiopia_chart.json"},
			{Selector: "#vis6", SpecURL: "graphs/never.json"},
		},
		Dashboards: &manifest.DashboardSet{
			Count: 3, Selector: "#dashboard{n}", DataURL: "data/dashboard{n}.json",
			Template: chartspec.Document{"mark": "line"},
		},
	}

	now := time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := &memRecorder{}
	l := newLoader(t, f, newRenderer(), func(o *Options) {
		o.Now = func() time.Time { return now }
		o.Recorder = rec
	})
	pg := newPage(t)

	res := l.Compose(context.Background(), pg, m)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Outcomes, 6)
	assert.Equal(t, 1, res.Count(StatusFailed))
	assert.Equal(t, 1, res.Count(StatusSkipped))
	assert.Equal(t, 4, res.Count(StatusRendered))

	vis4, ok := res.Outcome("#vis4")
	require.True(t, ok)
	assert.Equal(t, LoadFailure, vis4.Failure.Kind)
	assert.Contains(t, inner(t, pg, "#vis4"), "graphs/ethiopia_chart.json")
	assert.Contains(t, inner(t, pg, "#vis1"), "data-vega-embed")
	assert.Equal(t, "2031", inner(t, pg, "#year"))
	assert.NotContains(t, f.Calls(), "graphs/never.json")

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.RunID)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.RunID, rec.runs[0].ID)
	assert.Equal(t, 1, rec.runs[0].Failed)
	assert.Len(t, rec.entries[0], 6)
}

func TestCompose_PageDeadlineAbandonsHungSlots(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["graphs/fast.json"] = `{"mark":"bar"}`
	f.block["graphs/slow.json"] = make(chan struct{}) // never released

	m := &manifest.Manifest{Slots: []manifest.Slot{
		{Selector: "#vis1", SpecURL: "graphs/fast.json"},
		{Selector: "#vis4", SpecURL: "graphs/slow.json"},
	}}
	l := newLoader(t, f, newRenderer(), func(o *Options) { o.PageTimeout = 50 * time.Millisecond })
	pg := newPage(t)

	res := l.Compose(context.Background(), pg, m)

	vis4, _ := res.Outcome("#vis4")
	assert.Equal(t, StatusAbandoned, vis4.Status)
	assert.Contains(t, inner(t, pg, "#vis4"), "loading", "abandoned slot keeps its placeholder")

	vis1, _ := res.Outcome("#vis1")
	assert.Equal(t, StatusRendered, vis1.Status)
}

func TestCompose_BoundedConcurrency(t *testing.T) {
	f := newFakeFetcher()
	var inFlight, maxInFlight atomic.Int32
	f.onFetch = func(string) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	m := &manifest.Manifest{}
	for i := 0; i < 10; i++ {
		sel := fmt.Sprintf("slot%d", i)
		b.WriteString(`<div id="` + sel + `"></div>`)
		f.bodies["graphs/"+sel+".json"] = `{"mark":"bar"}`
		m.Slots = append(m.Slots, manifest.Slot{Selector: "#" + sel, SpecURL: "graphs/" + sel + ".json"})
	}
	b.WriteString("</body></html>")
	pg, err := page.ParseBytes([]byte(b.String()))
	require.NoError(t, err)

	res := newLoader(t, f, newRenderer(), func(o *Options) { o.MaxConcurrency = 2 }).Compose(context.Background(), pg, m)

	assert.Equal(t, 10, res.Count(StatusRendered))
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
}

func TestCompose_ConcurrentCompositionsShareManifest(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["data/debt.json"] = `{"data":[{"date":"2020-01-01","value":1,"indicator":"Debt"}]}`
	m := &manifest.Manifest{Slots: []manifest.Slot{
		{Selector: "#vis1", Spec: chartspec.Document{"mark": "bar"}, DataURL: "data/debt.json", Width: chartspec.Container()},
	}}
	before := m.Slots[0].Spec.Clone()
	l := newLoader(t, f, newRenderer())

	pages := make([]*page.Page, 8)
	for i := range pages {
		pages[i] = newPage(t)
	}

	var wg sync.WaitGroup
	for _, pg := range pages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := l.Compose(context.Background(), pg, m)
			assert.Equal(t, 1, res.Count(StatusRendered))
		}()
	}
	wg.Wait()
	assert.Empty(t, cmp.Diff(before, m.Slots[0].Spec))
}

type memRecorder struct {
	mu      sync.Mutex
	runs    []history.Run
	entries [][]history.Entry
}

func (r *memRecorder) RecordRun(_ context.Context, run history.Run, entries []history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	r.entries = append(r.entries, entries)
	return nil
}

type failingRecorder struct{}

func (failingRecorder) RecordRun(context.Context, history.Run, []history.Entry) error {
	return errors.New("disk full")
}

func TestCompose_LogsDashboardProgressAndRecorderFailure(t *testing.T) {
	f := newFakeFetcher()
	for i := 1; i <= 3; i++ {
		f.bodies[fmt.Sprintf("data/dashboard%d.json", i)] = `{"data":[]}`
	}
	m := &manifest.Manifest{Dashboards: &manifest.DashboardSet{
		Count: 3, Selector: "#dashboard{n}", DataURL: "data/dashboard{n}.json",
		Template: chartspec.Document{"mark": "line"},
	}}

	var buf syncBuffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	l, err := New(Options{Fetcher: f, Recorder: failingRecorder{}, Logger: &logger})
	require.NoError(t, err)

	res := l.Compose(context.Background(), newPage(t), m)

	assert.Equal(t, 3, res.Count(StatusRendered))
	logs := buf.String()
	assert.Equal(t, 3, strings.Count(logs, `"event":"dashboard.slot_done"`))
	assert.Contains(t, logs, `"event":"history.record_failed"`)
	assert.Contains(t, logs, "disk full")
}

// syncBuffer collects log lines from concurrent slot goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
