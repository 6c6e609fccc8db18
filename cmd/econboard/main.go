// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/econboard/internal/version"
)

type rootFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "econboard",
		Short: "Economic data chart page server",
		Long: "econboard composes the economic data chart page: every chart slot is\n" +
			"fetched and rendered independently, so one broken chart never blanks the page.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version.Version,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file (YAML); ENV overrides file values")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newBuildCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
