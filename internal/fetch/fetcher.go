// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fetch retrieves chart specifications and data files from the data origin.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/econboard/internal/cache"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/metrics"
	"github.com/ManuGH/econboard/internal/resilience"
	"github.com/ManuGH/econboard/internal/validate"
)

const (
	// EmbeddedOrigin labels an origin served from an in-process filesystem.
	EmbeddedOrigin = "embedded:"

	defaultMaxBodyBytes = 4 << 20
)

// Options configures a Fetcher.
type Options struct {
	// Origin is the base URL relative paths resolve against: http(s)://host/prefix or file:///dir.
	Origin string
	// FileSystem serves all requests in-process when set. Origin is then ignored.
	FileSystem http.FileSystem

	Timeout          time.Duration
	CacheTTL         time.Duration
	RatePerSecond    float64 // 0 disables the outbound limit
	BreakerThreshold int
	BreakerReset     time.Duration
	MaxBodyBytes     int64

	Cache  cache.Cache
	Logger *zerolog.Logger
}

// Fetcher performs GETs against the data origin.
type Fetcher struct {
	origin   string
	base     *url.URL
	client   *http.Client
	cache    cache.Cache
	ttl      time.Duration
	timeout  time.Duration
	maxBody  int64
	limiter  *rate.Limiter
	breakers *resilience.Registry
	group    singleflight.Group
	logger   zerolog.Logger
}

// New validates the origin and builds a Fetcher.
func New(opts Options) (*Fetcher, error) {
	f := &Fetcher{
		ttl:      opts.CacheTTL,
		timeout:  opts.Timeout,
		maxBody:  opts.MaxBodyBytes,
		cache:    opts.Cache,
		breakers: resilience.NewRegistry(opts.BreakerThreshold, opts.BreakerReset, resilience.WithFailurePredicate(countsAgainstOrigin)),
	}
	if f.timeout <= 0 {
		f.timeout = defaultClientTimeout
	}
	if f.maxBody <= 0 {
		f.maxBody = defaultMaxBodyBytes
	}
	if f.cache == nil {
		f.cache = cache.NewNoOpCache()
	}
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	if opts.Logger != nil {
		f.logger = opts.Logger.With().Str(xglog.FieldComponent, "fetch").Logger()
	} else {
		f.logger = xglog.WithComponent("fetch")
	}

	switch {
	case opts.FileSystem != nil:
		f.origin = EmbeddedOrigin
		f.base = &url.URL{Scheme: "file", Path: "/"}
		f.client = newClient(f.timeout, opts.FileSystem)
	default:
		base, err := parseOrigin(opts.Origin)
		if err != nil {
			return nil, err
		}
		f.origin = strings.TrimSuffix(base.String(), "/")
		if base.Scheme == "file" {
			f.client = newClient(f.timeout, http.Dir(base.Path))
			f.base = &url.URL{Scheme: "file", Path: "/"}
		} else {
			f.client = newClient(f.timeout, nil)
			f.base = base
		}
	}
	return f, nil
}

func parseOrigin(origin string) (*url.URL, error) {
	v := validate.New()
	v.URL("data.origin", origin, []string{"http", "https", "file"})
	if err := v.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Close drops idle keep-alive connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// Origin names the configured data origin.
func (f *Fetcher) Origin() string { return f.origin }

// Breakers reports the circuit state of each origin contacted so far.
func (f *Fetcher) Breakers() []resilience.OriginState { return f.breakers.States() }

// Resolve maps a resource path to the URL that will be requested.
// Absolute http(s) URLs pass through; relative paths stay under the origin.
func (f *Fetcher) Resolve(resource string) (*url.URL, error) {
	v := validate.New()
	v.ResourcePath("resource", resource)
	if err := v.Err(); err != nil {
		return nil, &Error{Sentinel: ErrInvalidPath, Resource: resource, Err: err}
	}

	if u, err := url.Parse(resource); err == nil && u.IsAbs() {
		if f.base.Scheme == "file" {
			return nil, &Error{Sentinel: ErrInvalidPath, Resource: resource, Err: errors.New("absolute URLs need an http origin")}
		}
		return u, nil
	}

	rel := path.Clean("/" + resource)
	resolved := *f.base
	resolved.Path = path.Join(f.base.Path, rel)
	resolved.RawQuery = ""
	return &resolved, nil
}

type result struct {
	body []byte
}

// Get returns the body of resource. Non-2xx responses, transport errors and
// an open origin breaker all return *Error.
func (f *Fetcher) Get(ctx context.Context, resource string) ([]byte, error) {
	u, err := f.Resolve(resource)
	if err != nil {
		return nil, err
	}
	key := f.cacheKey(u)

	if body, ok := f.cache.Get(ctx, key); ok {
		return body, nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		// detached so one caller giving up does not fail the others
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		body, err := f.fetch(reqCtx, resource, u)
		if err != nil {
			return nil, err
		}
		f.cache.Set(reqCtx, key, body, f.ttl)
		return result{body: body}, nil
	})

	select {
	case <-ctx.Done():
		return nil, &Error{Sentinel: ErrTransport, Resource: resource, URL: u.String(), Err: ctx.Err()}
	case res := <-ch:
		if res.Shared {
			metrics.RecordFetchShared()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.(result).body
		if res.Shared {
			// callers may mutate what they get
			body = append([]byte(nil), body...)
		}
		return body, nil
	}
}

func (f *Fetcher) cacheKey(u *url.URL) string {
	if u.Scheme == "file" {
		return f.origin + u.Path
	}
	return u.String()
}

func (f *Fetcher) breakerFor(u *url.URL) *resilience.CircuitBreaker {
	if u.Scheme == "file" {
		return f.breakers.For(f.origin)
	}
	return f.breakers.For(u.Scheme + "://" + u.Host)
}

func (f *Fetcher) fetch(ctx context.Context, resource string, u *url.URL) ([]byte, error) {
	start := time.Now()
	logger := xglog.WithContext(ctx, f.logger).With().
		Str(xglog.FieldResource, resource).
		Str("url", u.String()).
		Logger()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			metrics.RecordFetch("transport", time.Since(start))
			return nil, &Error{Sentinel: ErrTransport, Resource: resource, URL: u.String(), Err: err}
		}
	}

	var body []byte
	err := f.breakerFor(u).Execute(ctx, func(ctx context.Context) error {
		b, err := f.do(ctx, resource, u)
		body = b
		return err
	})

	elapsed := time.Since(start)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.RecordFetch("breaker_open", elapsed)
		logger.Warn().Str(xglog.FieldEvent, "fetch.circuit_open").Msg("origin circuit open, skipping request")
		return nil, &Error{Sentinel: ErrCircuitOpen, Resource: resource, URL: u.String(), Err: err}
	}
	if err != nil {
		result := "transport"
		if IsStatus(err) {
			result = "status"
		}
		metrics.RecordFetch(result, elapsed)
		logger.Debug().Err(err).Str(xglog.FieldEvent, "fetch.failed").Int64(xglog.FieldLatency, elapsed.Milliseconds()).Msg("fetch failed")
		return nil, err
	}

	metrics.RecordFetch("ok", elapsed)
	logger.Debug().
		Str(xglog.FieldEvent, "fetch.ok").
		Int("bytes", len(body)).
		Int64(xglog.FieldLatency, elapsed.Milliseconds()).
		Msg("fetched resource")
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, resource string, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Sentinel: ErrInvalidPath, Resource: resource, URL: u.String(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Sentinel: ErrTransport, Resource: resource, URL: u.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		sentinel := ErrStatus
		if resp.StatusCode == http.StatusNotFound {
			sentinel = ErrNotFound
		}
		return nil, &Error{Sentinel: sentinel, Resource: resource, URL: u.String(), Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, &Error{Sentinel: ErrTransport, Resource: resource, URL: u.String(), Err: err}
	}
	if int64(len(body)) > f.maxBody {
		return nil, &Error{Sentinel: ErrTooLarge, Resource: resource, URL: u.String(), Status: resp.StatusCode}
	}
	return body, nil
}
