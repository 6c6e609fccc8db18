// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := newRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_GetSet(t *testing.T) {
	ctx := context.Background()
	_, c := setupMiniRedis(t)

	c.Set(ctx, "data/dashboard1.json", []byte(`{"data":[]}`), time.Minute)

	val, ok := c.Get(ctx, "data/dashboard1.json")
	require.True(t, ok)
	assert.Equal(t, `{"data":[]}`, string(val))

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_Expiration(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)

	c.Set(ctx, "k", []byte("v"), time.Second)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)

	require.NoError(t, mr.Set("unrelated", "keep"))
	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	c.Clear(ctx)

	assert.Equal(t, 0, c.Stats().CurrentSize)
	got, err := mr.Get("unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep", got)
}

func TestRedisCache_Delete(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.True(t, mr.Exists(defaultKeyPrefix+"k"))

	c.Delete(ctx, "k")
	assert.False(t, mr.Exists(defaultKeyPrefix+"k"))
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)
	assert.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRedisCache_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	assert.True(t, mr.Exists("test:k"))
}
