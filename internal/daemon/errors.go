// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingLogger: Deps.Logger is disabled or zero.
	ErrMissingLogger = errors.New("daemon: logger is required")

	// ErrMissingAPIHandler: there is no chart page handler to serve.
	ErrMissingAPIHandler = errors.New("daemon: chart page handler is required")

	// ErrMissingManager is returned by App.Run without a server manager.
	ErrMissingManager = errors.New("daemon: server manager is required")

	// ErrManagerNotStarted is returned when shutting down a manager whose
	// listener never opened.
	ErrManagerNotStarted = errors.New("daemon: server manager not started")

	// ErrReloadUnavailable is returned by App.Reload when the app was built
	// without a config holder, e.g. for a one-shot composition.
	ErrReloadUnavailable = errors.New("daemon: config reload unavailable")
)
