// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package loader composes chart slots into a page. Each slot resolves its
// specification, merges its data file, and is handed to the render boundary;
// a failing slot shows an inline diagnostic and never affects another slot.
package loader

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/econboard/internal/chartspec"
	"github.com/ManuGH/econboard/internal/history"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/manifest"
	"github.com/ManuGH/econboard/internal/metrics"
	"github.com/ManuGH/econboard/internal/page"
	"github.com/ManuGH/econboard/internal/records"
	"github.com/ManuGH/econboard/internal/render"
	"github.com/ManuGH/econboard/internal/telemetry"
)

// YearSelector receives the current year after each composition.
const YearSelector = "#year"

const defaultMaxConcurrency = 8

var ErrNoFetcher = errors.New("loader: fetcher is required")

// Fetcher returns the body of a resource path.
type Fetcher interface {
	Get(ctx context.Context, resource string) ([]byte, error)
}

// RunRecorder persists composition results.
type RunRecorder interface {
	RecordRun(ctx context.Context, run history.Run, entries []history.Entry) error
}

// Options configures a Loader.
type Options struct {
	Fetcher        Fetcher
	Renderer       render.Renderer // defaults to render.VegaEmbed
	MaxConcurrency int
	PageTimeout    time.Duration // 0 means no page deadline
	Recorder       RunRecorder   // optional
	Logger         *zerolog.Logger
	Now            func() time.Time
}

// Loader renders slots. It is safe for concurrent compositions.
type Loader struct {
	fetcher     Fetcher
	renderer    render.Renderer
	limit       int
	pageTimeout time.Duration
	recorder    RunRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	last        atomic.Pointer[Result]
}

// New builds a Loader.
func New(opts Options) (*Loader, error) {
	if opts.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	l := &Loader{
		fetcher:     opts.Fetcher,
		renderer:    opts.Renderer,
		limit:       opts.MaxConcurrency,
		pageTimeout: opts.PageTimeout,
		recorder:    opts.Recorder,
		tracer:      telemetry.Tracer("econboard/loader"),
		now:         opts.Now,
	}
	if l.renderer == nil {
		l.renderer = render.NewVegaEmbed()
	}
	if l.limit <= 0 {
		l.limit = defaultMaxConcurrency
	}
	if l.now == nil {
		l.now = time.Now
	}
	if opts.Logger != nil {
		l.logger = opts.Logger.With().Str(xglog.FieldComponent, "loader").Logger()
	} else {
		l.logger = xglog.WithComponent("loader")
	}
	return l, nil
}

// Last returns the most recent composition result.
func (l *Loader) Last() (Result, bool) {
	r := l.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Compose renders every slot of m into pg. Independent slots run
// concurrently; the dashboard set runs in order alongside them.
func (l *Loader) Compose(ctx context.Context, pg *page.Page, m *manifest.Manifest) Result {
	start := l.now()
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)

	if l.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.pageTimeout)
		defer cancel()
	}

	ctx, span := l.tracer.Start(ctx, "loader.compose")
	defer span.End()

	slots, set := Plan(m)
	outcomes := make([]Outcome, len(slots)+len(set.Slots))

	var outer errgroup.Group
	outer.Go(func() error {
		var g errgroup.Group
		g.SetLimit(l.limit)
		for i, s := range slots {
			g.Go(func() error {
				outcomes[i] = l.RenderSlot(ctx, pg, s)
				return nil
			})
		}
		return g.Wait()
	})
	outer.Go(func() error {
		copy(outcomes[len(slots):], l.RenderDashboardSet(ctx, pg, set))
		return nil
	})
	_ = outer.Wait()

	if pg.Has(YearSelector) {
		_ = pg.SetText(YearSelector, strconv.Itoa(l.now().Year()))
	}

	res := Result{
		RunID:     runID,
		StartedAt: start,
		Duration:  l.now().Sub(start),
		Outcomes:  outcomes,
	}
	failed := res.Count(StatusFailed)
	span.SetAttributes(telemetry.CompositionAttributes(runID, len(outcomes), failed)...)
	metrics.RecordComposition(res.Duration, failed)
	l.last.Store(&res)

	logger := xglog.WithContext(ctx, l.logger)
	logger.Info().
		Str(xglog.FieldEvent, "compose.finished").
		Int("slots", len(outcomes)).
		Int("failed", failed).
		Int("skipped", res.Count(StatusSkipped)).
		Int("abandoned", res.Count(StatusAbandoned)).
		Int64(xglog.FieldLatency, res.Duration.Milliseconds()).
		Msg("page composed")

	l.record(ctx, res)
	return res
}

func (l *Loader) record(ctx context.Context, res Result) {
	if l.recorder == nil {
		return
	}
	// the page deadline must not drop the history row
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	run, entries := res.History()
	if err := l.recorder.RecordRun(recCtx, run, entries); err != nil {
		logger := xglog.WithContext(ctx, l.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "history.record_failed").
			Msg("could not record composition")
	}
}

// RenderDashboardSet renders dashboard slots strictly in order. A failure at
// slot k does not stop slot k+1.
func (l *Loader) RenderDashboardSet(ctx context.Context, pg *page.Page, set DashboardSet) []Outcome {
	out := make([]Outcome, 0, len(set.Slots))
	logger := xglog.WithContext(ctx, l.logger)
	for i, s := range set.Slots {
		o := l.RenderSlot(ctx, pg, s)
		logger.Debug().
			Str(xglog.FieldEvent, "dashboard.slot_done").
			Int(xglog.FieldDashboard, i+1).
			Str(xglog.FieldOutcome, string(o.Status)).
			Msg("dashboard slot finished")
		out = append(out, o)
	}
	return out
}

// RenderSlot renders one slot into pg. An absent target is a no-op; any
// failure replaces the slot content with a diagnostic naming the resource.
func (l *Loader) RenderSlot(ctx context.Context, pg *page.Page, s Slot) Outcome {
	start := l.now()
	out := Outcome{Selector: s.Selector, Kind: s.Kind(), StartedAt: start}

	if !pg.Has(s.Selector) {
		out.Status = StatusSkipped
		l.finish(ctx, &out, start)
		return out
	}
	if ctx.Err() != nil {
		out.Status = StatusAbandoned
		l.finish(ctx, &out, start)
		return out
	}

	ctx, span := l.tracer.Start(ctx, "loader.slot", trace.WithAttributes(telemetry.SlotAttributes(s.Selector, s.Kind(), s.source())...))
	defer span.End()

	title, failure := l.renderSlot(ctx, pg, s)
	out.Title = title

	switch {
	case failure == nil:
		out.Status = StatusRendered
	case ctx.Err() != nil:
		// a hung request leaves the placeholder in place
		out.Status = StatusAbandoned
		out.Failure = failure
	default:
		out.Status = StatusFailed
		out.Failure = failure
		telemetry.RecordError(span, failure, string(failure.Kind))
		if err := pg.ShowDiagnostic(s.Selector, diagnostic(failure, xglog.RequestIDFromContext(ctx))); err != nil {
			logger := xglog.WithContext(ctx, l.logger)
			logger.Error().Err(err).Str(xglog.FieldSelector, s.Selector).Msg("could not place diagnostic")
		}
	}
	span.SetAttributes(attribute.String(telemetry.SlotOutcomeKey, string(out.Status)))

	l.finish(ctx, &out, start)
	return out
}

func (l *Loader) finish(ctx context.Context, out *Outcome, start time.Time) {
	out.Duration = l.now().Sub(start)

	failureKind := ""
	if out.Failure != nil && out.Status == StatusFailed {
		failureKind = string(out.Failure.Kind)
	}
	metrics.RecordSlotOutcome(out.Kind, string(out.Status), failureKind, out.Duration)

	logger := xglog.WithContext(ctx, l.logger)
	switch out.Status {
	case StatusFailed:
		ev := logger.Warn().
			Str(xglog.FieldEvent, "slot.render_failed").
			Str(xglog.FieldSelector, out.Selector).
			Str(xglog.FieldOutcome, string(out.Status)).
			Str(xglog.FieldFailure, string(out.Failure.Kind)).
			Str(xglog.FieldResource, out.Failure.Resource).
			Int64(xglog.FieldLatency, out.Duration.Milliseconds())
		if out.Failure.Status > 0 {
			ev = ev.Int(xglog.FieldStatus, out.Failure.Status)
		}
		ev.Err(out.Failure.Err).Msg("slot failed, showing diagnostic")
	case StatusAbandoned:
		logger.Warn().
			Str(xglog.FieldEvent, "slot.abandoned").
			Str(xglog.FieldSelector, out.Selector).
			Msg("page deadline reached before slot finished")
	case StatusSkipped:
		logger.Debug().
			Str(xglog.FieldEvent, "slot.skipped").
			Str(xglog.FieldSelector, out.Selector).
			Msg("slot target not on page")
	default:
		logger.Debug().
			Str(xglog.FieldEvent, "slot.rendered").
			Str(xglog.FieldSelector, out.Selector).
			Int64(xglog.FieldLatency, out.Duration.Milliseconds()).
			Msg("slot rendered")
	}
}

// renderSlot does the work of RenderSlot and returns the applied title.
func (l *Loader) renderSlot(ctx context.Context, pg *page.Page, s Slot) (string, *Failure) {
	spec, failure := l.resolveSpec(ctx, s)
	if failure != nil {
		return "", failure
	}

	if s.DataURL != "" {
		raw, err := l.fetcher.Get(ctx, s.DataURL)
		if err != nil {
			return "", classifyFetch(s.DataURL, err)
		}
		file, err := records.Decode(raw)
		if err != nil {
			return "", &Failure{Kind: ParseFailure, Resource: s.DataURL, Err: err}
		}
		spec.SetDataURL(s.DataURL)

		switch {
		case s.Dashboard > 0:
			spec.SetTitle(file.DashboardTitle(s.Dashboard))
		case spec.Title() == "" && file.Title != "":
			spec.SetTitle(file.Title)
		}
	}

	spec.SetSize(s.Width, s.Height)

	frag, err := l.renderer.Embed(ctx, s.Selector, spec, render.DefaultOptions(s.Width, s.Height))
	if err != nil {
		return "", &Failure{Kind: RenderFailure, Resource: s.source(), Err: err}
	}
	if err := pg.ReplaceHTML(s.Selector, frag.HTML); err != nil {
		return "", &Failure{Kind: RenderFailure, Resource: s.source(), Err: err}
	}
	return spec.Title(), nil
}

// resolveSpec returns a private copy of the slot's specification.
func (l *Loader) resolveSpec(ctx context.Context, s Slot) (chartspec.Document, *Failure) {
	if s.Spec != nil {
		return s.Spec.Clone(), nil
	}
	raw, err := l.fetcher.Get(ctx, s.SpecURL)
	if err != nil {
		return nil, classifyFetch(s.SpecURL, err)
	}
	spec, err := chartspec.Parse(raw)
	if err != nil {
		return nil, &Failure{Kind: ParseFailure, Resource: s.SpecURL, Err: err}
	}
	return spec, nil
}
