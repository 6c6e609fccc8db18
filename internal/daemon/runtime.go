// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/econboard/internal/api"
	"github.com/ManuGH/econboard/internal/cache"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/fetch"
	"github.com/ManuGH/econboard/internal/loader"
	"github.com/ManuGH/econboard/internal/manifest"
	"github.com/ManuGH/econboard/internal/metrics"
	"github.com/ManuGH/econboard/internal/site"
)

// Runtime is everything that is rebuilt when configuration changes.
// The resource cache outlives it.
type Runtime struct {
	Fetcher  *fetch.Fetcher
	Loader   *loader.Loader
	Manifest *manifest.Manifest
	DataDir  string
}

// BuildRuntime loads the manifest and wires fetcher and loader for cfg.
func BuildRuntime(cfg config.AppConfig, c cache.Cache, rec loader.RunRecorder, logger zerolog.Logger) (*Runtime, error) {
	m, err := LoadManifest(cfg)
	if err != nil {
		return nil, err
	}

	opts := fetch.Options{
		Origin:           cfg.DataOrigin(),
		Timeout:          cfg.Fetch.Timeout,
		CacheTTL:         cfg.Fetch.CacheTTL,
		RatePerSecond:    cfg.Fetch.RatePerSecond,
		BreakerThreshold: cfg.Fetch.BreakerThreshold,
		BreakerReset:     cfg.Fetch.BreakerReset,
		Cache:            c,
		Logger:           &logger,
	}
	if opts.Origin == "" {
		opts.FileSystem = http.FS(site.PublicFS())
	}
	f, err := fetch.New(opts)
	if err != nil {
		return nil, fmt.Errorf("data origin: %w", err)
	}

	l, err := loader.New(loader.Options{
		Fetcher:        f,
		MaxConcurrency: cfg.Render.MaxConcurrency,
		PageTimeout:    cfg.Render.PageTimeout,
		Recorder:       rec,
		Logger:         &logger,
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	charts, dashboards := m.Counts()
	metrics.SetManifestSlots(charts, dashboards)

	return &Runtime{Fetcher: f, Loader: l, Manifest: m, DataDir: cfg.Data.Dir}, nil
}

// LoadManifest reads the configured manifest, or the embedded one.
func LoadManifest(cfg config.AppConfig) (*manifest.Manifest, error) {
	if cfg.Manifest.Path == "" {
		return manifest.Default()
	}
	m, err := manifest.Load(cfg.Manifest.Path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", cfg.Manifest.Path, err)
	}
	return m, nil
}

// API exposes the runtime to the HTTP server.
func (r *Runtime) API() *api.Runtime {
	return &api.Runtime{
		Loader:    r.Loader,
		Manifest:  r.Manifest,
		Resources: r.Fetcher,
		DataDir:   r.DataDir,
	}
}

// Close releases idle origin connections.
func (r *Runtime) Close() {
	if r != nil && r.Fetcher != nil {
		r.Fetcher.Close()
	}
}

// CacheOptions maps configuration onto the cache factory.
func CacheOptions(cfg config.AppConfig) cache.Options {
	return cache.Options{
		Backend: cfg.Cache.Backend,
		Redis: cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		},
	}
}
