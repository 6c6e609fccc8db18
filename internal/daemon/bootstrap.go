// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires configuration, storage and the HTTP server into a
// running process and owns its lifecycle.
package daemon

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/econboard/internal/api"
	"github.com/ManuGH/econboard/internal/cache"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/health"
	"github.com/ManuGH/econboard/internal/history"
	"github.com/ManuGH/econboard/internal/loader"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/resilience"
	"github.com/ManuGH/econboard/internal/telemetry"
)

// compositions older than this mark the service degraded
const compositionMaxAge = time.Hour

// Options configures Bootstrap.
type Options struct {
	ConfigPath string
	Version    string
	LogOutput  io.Writer // defaults to stdout
}

// prunedRecorder records a run and trims the history to keep runs.
type prunedRecorder struct {
	store *history.Store
	keep  int
}

func (p prunedRecorder) RecordRun(ctx context.Context, run history.Run, entries []history.Entry) error {
	if err := p.store.RecordRun(ctx, run, entries); err != nil {
		return err
	}
	if p.keep > 0 {
		if _, err := p.store.Prune(ctx, p.keep); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	return nil
}

// Bootstrap loads configuration and builds a ready-to-run App. Resources
// opened here are released by the manager's shutdown hooks, or immediately
// when bootstrap fails.
func Bootstrap(ctx context.Context, opts Options) (app *App, err error) {
	cfgLoader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := cfgLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  opts.LogOutput,
		Service: cfg.LogService,
		Version: opts.Version,
	})
	logger := xglog.WithComponent("daemon")
	logger.Info().
		Str(xglog.FieldEvent, "daemon.starting").
		Str("version", opts.Version).
		Str("listen", cfg.Server.Listen).
		Msg("starting econboard")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	var cleanups []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i].hook(context.Background())
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: opts.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanups = append(cleanups, namedHook{"telemetry", tp.Shutdown})

	c, err := cache.New(ctx, CacheOptions(cfg), xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	cleanups = append(cleanups, namedHook{"cache", func(context.Context) error { return c.Close() }})

	hm := health.NewManager(opts.Version)

	var (
		store    *history.Store
		recorder loader.RunRecorder
		reader   api.HistoryReader
	)
	if cfg.History.Path != "" {
		store, err = history.Open(ctx, cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		cleanups = append(cleanups, namedHook{"history", func(context.Context) error { return store.Close() }})
		recorder = prunedRecorder{store: store, keep: cfg.History.KeepRuns}
		reader = store
		hm.RegisterChecker(health.NewFuncChecker("history", store.Check))
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewOptionalFuncChecker("redis", rc.HealthCheck))
	}
	hm.RegisterChecker(health.NewFileChecker("manifest", cfg.Manifest.Path))

	holder := config.NewConfigHolder(cfg, cfgLoader)
	app = NewApp(logger, nil, holder, nil, c, recorder)

	hm.RegisterChecker(health.NewCompositionChecker(func() (health.CompositionSummary, bool) {
		rt := app.Runtime()
		if rt == nil {
			return health.CompositionSummary{}, false
		}
		res, ok := rt.Loader.Last()
		if !ok {
			return health.CompositionSummary{}, false
		}
		return health.CompositionSummary{
			At:     res.StartedAt,
			Slots:  len(res.Outcomes),
			Failed: res.Count(loader.StatusFailed),
		}, true
	}, compositionMaxAge))
	hm.RegisterChecker(health.NewBreakerChecker(func() []string {
		rt := app.Runtime()
		if rt == nil {
			return nil
		}
		var open []string
		for _, st := range rt.Fetcher.Breakers() {
			if st.State == resilience.StateOpen {
				open = append(open, st.Origin)
			}
		}
		return open
	}))

	app.server = api.New(api.Options{
		Config:  cfg,
		Health:  hm,
		History: reader,
		Reload:  app.Reload,
	})
	if err := app.Apply(cfg); err != nil {
		return nil, err
	}
	holder.SetApplier(app.Apply)
	cleanups = append(cleanups, namedHook{"runtime", func(context.Context) error {
		app.Runtime().Close()
		return nil
	}})

	mgr, err := NewManager(Deps{
		Logger:     logger,
		Server:     cfg.Server,
		APIHandler: app.server.Handler(),
	})
	if err != nil {
		return nil, err
	}
	for _, h := range cleanups {
		mgr.RegisterShutdownHook(h.name, h.hook)
	}
	app.manager = mgr
	return app, nil
}
