// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/econboard/internal/api"
	"github.com/ManuGH/econboard/internal/cache"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/loader"
	xglog "github.com/ManuGH/econboard/internal/log"
)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring)
// and delegates server management to Manager.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	cfgHolder *config.ConfigHolder
	server    *api.Server

	cache    cache.Cache
	recorder loader.RunRecorder

	mu      sync.RWMutex
	runtime *Runtime

	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. Apply must run once before Run.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, server *api.Server, c cache.Cache, rec loader.RunRecorder) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		server:       server,
		cache:        c,
		recorder:     rec,
		reloadSignal: syscall.SIGHUP,
	}
}

// Runtime returns the runtime currently serving requests.
func (a *App) Runtime() *Runtime {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runtime
}

// Apply builds a runtime for cfg and swaps it in. On error the running
// runtime is left untouched.
func (a *App) Apply(cfg config.AppConfig) error {
	rt, err := BuildRuntime(cfg, a.cache, a.recorder, a.logger)
	if err != nil {
		return err
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	a.mu.Lock()
	old := a.runtime
	a.runtime = rt
	a.mu.Unlock()

	if a.server != nil {
		a.server.SetRuntime(rt.API())
	}
	old.Close()

	charts, dashboards := rt.Manifest.Counts()
	a.logger.Info().
		Str(xglog.FieldEvent, "runtime.applied").
		Str(xglog.FieldOrigin, rt.Fetcher.Origin()).
		Int("charts", charts).
		Int("dashboards", dashboards).
		Msg("runtime ready")
	return nil
}

// Reload re-reads configuration and manifest. Used by SIGHUP and the
// reload endpoint; the file watcher goes through the holder directly.
func (a *App) Reload(ctx context.Context) error {
	if a.cfgHolder == nil {
		return ErrReloadUnavailable
	}
	return a.cfgHolder.Reload(ctx)
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// the watcher is best effort; startup does not fail without it
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	err := g.Wait()
	if a.cfgHolder != nil {
		a.cfgHolder.Wait()
	}
	return err
}
