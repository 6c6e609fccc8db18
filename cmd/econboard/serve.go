// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/econboard/internal/daemon"
	"github.com/ManuGH/econboard/internal/version"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chart page, its data files and the operator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := daemon.Bootstrap(ctx, daemon.Options{
				ConfigPath: root.configPath,
				Version:    version.Version,
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
	}
}
