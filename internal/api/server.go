// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the composed chart page, its data files and the
// operator endpoints.
package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/econboard/internal/api/middleware"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/health"
	"github.com/ManuGH/econboard/internal/history"
	"github.com/ManuGH/econboard/internal/loader"
	"github.com/ManuGH/econboard/internal/manifest"
	"github.com/ManuGH/econboard/internal/page"
	"github.com/ManuGH/econboard/internal/site"
)

// ErrNoRuntime is returned by handlers that run before SetRuntime.
var ErrNoRuntime = errors.New("api: runtime not initialised")

// Composer composes a page from a manifest.
type Composer interface {
	Compose(ctx context.Context, pg *page.Page, m *manifest.Manifest) loader.Result
	Last() (loader.Result, bool)
}

// ResourceGetter reads resources from the data origin.
type ResourceGetter interface {
	Get(ctx context.Context, resource string) ([]byte, error)
}

// HistoryReader exposes the latest recorded composition.
type HistoryReader interface {
	Latest(ctx context.Context) (history.Run, []history.Entry, error)
}

// Runtime is the set of components rebuilt on config reload.
type Runtime struct {
	Loader    Composer
	Manifest  *manifest.Manifest
	Resources ResourceGetter
	// DataDir, when set, serves /graphs and /data straight from disk.
	DataDir string
}

// Options configures a Server.
type Options struct {
	Config   config.AppConfig
	Health   *health.Manager
	History  HistoryReader
	Reload   func(ctx context.Context) error
	Template []byte // defaults to the embedded page
	Public   fs.FS  // defaults to the embedded public assets
}

// Server routes requests to the page composer and the operator endpoints.
type Server struct {
	cfg      config.AppConfig
	health   *health.Manager
	history  HistoryReader
	reload   func(ctx context.Context) error
	template []byte
	public   fs.FS

	runtime atomic.Pointer[Runtime]
	router  chi.Router
}

// New creates a server. SetRuntime must be called before pages are served.
func New(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		health:   opts.Health,
		history:  opts.History,
		reload:   opts.Reload,
		template: opts.Template,
		public:   opts.Public,
	}
	if s.template == nil {
		s.template = site.Template()
	}
	if s.public == nil {
		s.public = site.PublicFS()
	}
	if s.health == nil {
		s.health = health.NewManager(opts.Config.Version)
	}
	s.router = s.routes()
	return s
}

// SetRuntime swaps in a freshly built runtime. In-flight requests keep the
// runtime they started with.
func (s *Server) SetRuntime(rt *Runtime) {
	s.runtime.Store(rt)
}

func (s *Server) currentRuntime() (*Runtime, error) {
	rt := s.runtime.Load()
	if rt == nil || rt.Loader == nil || rt.Manifest == nil {
		return nil, ErrNoRuntime
	}
	return rt, nil
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	tracing := ""
	if s.cfg.Telemetry.Enabled {
		tracing = s.cfg.LogService
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(s.cfg.Server.AllowedOrigins) > 0,
		AllowedOrigins:        s.cfg.Server.AllowedOrigins,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
		RateLimitRPM:          s.cfg.Server.RateLimitRPM,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handlePage)
	r.Get("/index.html", s.handlePage)
	r.Handle("/graphs/*", http.HandlerFunc(s.handleResource))
	r.Handle("/data/*", http.HandlerFunc(s.handleResource))
	r.Handle("/static/*", http.FileServerFS(s.public))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/slots", s.handleSlots)
		r.With(
			middleware.CSRFProtection(s.cfg.Server.AllowedOrigins),
			middleware.ReloadRateLimit(),
		).Post("/config/reload", s.handleReload)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, r)
	})
	return r
}
