// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/econboard/internal/metrics"
	"github.com/ManuGH/econboard/internal/validate"
)

// Validate checks a merged configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("log_level", "must be one of debug, info, warn, error", cfg.LogLevel)
	}

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.NonNegative("server.rate_limit_rpm", cfg.Server.RateLimitRPM)
	v.DurationRange("server.shutdown_timeout", cfg.Server.ShutdownTimeout, time.Second, 5*time.Minute)

	if cfg.Data.Origin != "" {
		v.URL("data.origin", cfg.Data.Origin, []string{"http", "https", "file"})
	}
	if cfg.Data.Dir != "" {
		v.Directory("data.dir", cfg.Data.Dir, true)
	}

	v.DurationRange("fetch.timeout", cfg.Fetch.Timeout, 100*time.Millisecond, 5*time.Minute)
	v.DurationRange("fetch.cache_ttl", cfg.Fetch.CacheTTL, 0, 24*time.Hour)
	if cfg.Fetch.RatePerSecond < 0 {
		v.AddError("fetch.rate_per_second", "must not be negative", cfg.Fetch.RatePerSecond)
	}
	v.Range("fetch.breaker_threshold", cfg.Fetch.BreakerThreshold, 1, 1000)
	v.DurationRange("fetch.breaker_reset", cfg.Fetch.BreakerReset, time.Second, time.Hour)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{CacheMemory, CacheRedis, CacheNone})
	if cfg.Cache.Backend == CacheRedis {
		v.NotEmpty("cache.redis.addr", cfg.Cache.Redis.Addr)
		v.Range("cache.redis.db", cfg.Cache.Redis.DB, 0, 15)
	}

	v.Range("render.max_concurrency", cfg.Render.MaxConcurrency, 1, 256)
	v.DurationRange("render.page_timeout", cfg.Render.PageTimeout, 0, 10*time.Minute)

	v.NonNegative("history.keep_runs", cfg.History.KeepRuns)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.AddError("telemetry.sampling_rate", fmt.Sprintf("must be between 0 and 1, got %g", cfg.Telemetry.SamplingRate), cfg.Telemetry.SamplingRate)
	}

	if err := v.Err(); err != nil {
		metrics.IncConfigValidationError()
		return err
	}
	return nil
}
