// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/econboard/internal/history"
)

type historyFlags struct {
	failures bool
	selector string
	limit    int
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	flags := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded slot outcomes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if cfg.History.Path == "" {
				return errors.New("history is disabled: set history.path or ECONBOARD_HISTORY_PATH")
			}

			store, err := history.Open(cmd.Context(), cfg.History.Path)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(cmd.Context(), history.Query{
				FailuresOnly: flags.failures,
				Selector:     flags.selector,
				Limit:        flags.limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no recorded outcomes")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSLOT\tOUTCOME\tFAILURE\tRESOURCE\tSTATUS\tDURATION")
			for _, e := range entries {
				status := ""
				if e.Status > 0 {
					status = fmt.Sprint(e.Status)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.StartedAt.Format(time.RFC3339), e.Selector, e.Outcome, e.Failure, e.Resource, status, e.Duration.Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.failures, "failures", false, "only failed slots")
	f.StringVar(&flags.selector, "selector", "", "only this slot, e.g. #vis4")
	f.IntVar(&flags.limit, "limit", history.DefaultListLimit, "maximum rows")
	return cmd
}
