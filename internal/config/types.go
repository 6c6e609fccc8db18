// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the service configuration from defaults, a strict YAML
// file, and ECONBOARD_* environment variables, in that order of precedence.
package config

import "time"

// AppConfig is the fully merged configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"log_level"`
	LogService string `yaml:"log_service"`

	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Manifest  ManifestConfig  `yaml:"manifest"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	Render    RenderConfig    `yaml:"render"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm"` // 0 disables
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DataConfig locates the chart and data files.
type DataConfig struct {
	// Origin is what the loader fetches from. Empty means Dir (as a file
	// origin) or, when Dir is empty too, the embedded fixtures.
	Origin string `yaml:"origin"`
	// Dir is served under /graphs and /data.
	Dir string `yaml:"dir"`
}

// ManifestConfig points at the slot manifest. Empty Path uses the embedded one.
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// FetchConfig tunes the outbound fetcher.
type FetchConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend"` // memory, redis or none
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Backend is redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RenderConfig bounds a composition.
type RenderConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	PageTimeout    time.Duration `yaml:"page_timeout"` // 0 disables
}

// HistoryConfig enables the outcome store. Empty Path disables it.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	KeepRuns int    `yaml:"keep_runs"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "econboard",
		Server: ServerConfig{
			Listen:          ":8080",
			RateLimitRPM:    600,
			ShutdownTimeout: 10 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:          10 * time.Second,
			CacheTTL:         5 * time.Minute,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			Redis:   RedisConfig{KeyPrefix: "econboard:resource:"},
		},
		Render: RenderConfig{
			MaxConcurrency: 8,
			PageTimeout:    30 * time.Second,
		},
		History: HistoryConfig{KeepRuns: 500},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
			Environment:  "production",
		},
	}
}
