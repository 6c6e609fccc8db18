// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// New builds the configured backend. An unreachable Redis is an error, not a silent fallback.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (Cache, error) {
	switch opts.Backend {
	case "", BackendMemory:
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		return NewMemoryCache(interval), nil
	case BackendRedis:
		return NewRedisCache(ctx, opts.Redis, logger)
	case BackendNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
