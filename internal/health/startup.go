// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str(log.FieldEvent, "startup.checks").Msg("running pre-flight startup checks")

	if cfg.History.Path != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.History.Path)); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	}
	if cfg.Manifest.Path != "" {
		if err := checkFileReadable(cfg.Manifest.Path); err != nil {
			return fmt.Errorf("manifest check failed: %w", err)
		}
	}
	if cfg.Data.Dir != "" {
		info, err := os.Stat(cfg.Data.Dir)
		if err != nil {
			return fmt.Errorf("data directory check failed: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("data directory check failed: %s is not a directory", cfg.Data.Dir)
		}
	}

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	probe, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	logger.Debug().Str(log.FieldPath, path).Msg("directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
