// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys. Every key the loader reads is listed here.
const (
	EnvLogLevel         = "ECONBOARD_LOG_LEVEL"
	EnvLogService       = "ECONBOARD_LOG_SERVICE"
	EnvListen           = "ECONBOARD_LISTEN"
	EnvRateLimitRPM     = "ECONBOARD_RATE_LIMIT_RPM"
	EnvAllowedOrigins   = "ECONBOARD_ALLOWED_ORIGINS"
	EnvDataOrigin       = "ECONBOARD_DATA_ORIGIN"
	EnvDataDir          = "ECONBOARD_DATA_DIR"
	EnvManifest         = "ECONBOARD_MANIFEST"
	EnvFetchTimeout     = "ECONBOARD_FETCH_TIMEOUT"
	EnvFetchCacheTTL    = "ECONBOARD_FETCH_CACHE_TTL"
	EnvFetchRate        = "ECONBOARD_FETCH_RATE"
	EnvBreakerThreshold = "ECONBOARD_BREAKER_THRESHOLD"
	EnvBreakerReset     = "ECONBOARD_BREAKER_RESET"
	EnvCacheBackend     = "ECONBOARD_CACHE_BACKEND"
	EnvRedisAddr        = "ECONBOARD_REDIS_ADDR"
	EnvRedisPassword    = "ECONBOARD_REDIS_PASSWORD"
	EnvRedisDB          = "ECONBOARD_REDIS_DB"
	EnvMaxConcurrency   = "ECONBOARD_MAX_CONCURRENCY"
	EnvPageTimeout      = "ECONBOARD_PAGE_TIMEOUT"
	EnvHistoryPath      = "ECONBOARD_HISTORY_PATH"
	EnvTelemetry        = "ECONBOARD_TELEMETRY_ENABLED"
	EnvOTLPExporter     = "ECONBOARD_OTLP_EXPORTER"
	EnvOTLPEndpoint     = "ECONBOARD_OTLP_ENDPOINT"
	EnvTraceSampling    = "ECONBOARD_TRACE_SAMPLING"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path the loader reads.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is strict: parse file, apply env, resolve paths, validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if cfg.Data.Dir != "" {
		if abs, err := filepath.Abs(cfg.Data.Dir); err == nil {
			cfg.Data.Dir = abs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with strict parsing.
// Unknown fields are a hard error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)

	cfg.Server.Listen = l.envString(EnvListen, cfg.Server.Listen)
	cfg.Server.RateLimitRPM = l.envInt(EnvRateLimitRPM, cfg.Server.RateLimitRPM)
	cfg.Server.AllowedOrigins = l.envList(EnvAllowedOrigins, cfg.Server.AllowedOrigins)

	cfg.Data.Origin = l.envString(EnvDataOrigin, cfg.Data.Origin)
	cfg.Data.Dir = l.envString(EnvDataDir, cfg.Data.Dir)
	cfg.Manifest.Path = l.envString(EnvManifest, cfg.Manifest.Path)

	cfg.Fetch.Timeout = l.envDuration(EnvFetchTimeout, cfg.Fetch.Timeout)
	cfg.Fetch.CacheTTL = l.envDuration(EnvFetchCacheTTL, cfg.Fetch.CacheTTL)
	cfg.Fetch.RatePerSecond = l.envFloat(EnvFetchRate, cfg.Fetch.RatePerSecond)
	cfg.Fetch.BreakerThreshold = l.envInt(EnvBreakerThreshold, cfg.Fetch.BreakerThreshold)
	cfg.Fetch.BreakerReset = l.envDuration(EnvBreakerReset, cfg.Fetch.BreakerReset)

	cfg.Cache.Backend = l.envString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.Redis.Addr = l.envString(EnvRedisAddr, cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = l.envString(EnvRedisPassword, cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = l.envInt(EnvRedisDB, cfg.Cache.Redis.DB)

	cfg.Render.MaxConcurrency = l.envInt(EnvMaxConcurrency, cfg.Render.MaxConcurrency)
	cfg.Render.PageTimeout = l.envDuration(EnvPageTimeout, cfg.Render.PageTimeout)

	cfg.History.Path = l.envString(EnvHistoryPath, cfg.History.Path)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetry, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)
}

// DataOrigin resolves the origin the loader fetches from. An empty result
// means the embedded fixtures.
func (c AppConfig) DataOrigin() string {
	if c.Data.Origin != "" {
		return c.Data.Origin
	}
	if c.Data.Dir != "" {
		return "file://" + filepath.ToSlash(c.Data.Dir)
	}
	return ""
}
