// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ManuGH/econboard/internal/cache"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/daemon"
	"github.com/ManuGH/econboard/internal/history"
	"github.com/ManuGH/econboard/internal/loader"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/page"
	"github.com/ManuGH/econboard/internal/publish"
	"github.com/ManuGH/econboard/internal/site"
	"github.com/ManuGH/econboard/internal/version"
)

type buildFlags struct {
	outDir string
	assets bool
	strict bool
}

func newBuildCmd(root *rootFlags) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compose the page once and write it to a directory",
		Long: "build composes the page like the server does and writes index.html\n" +
			"into the output directory. With --assets the static files and the chart\n" +
			"specs and data files of the configured origin are exported next to it,\n" +
			"so the directory can be hosted as is.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, root, flags)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.outDir, "out", "o", "", "output directory (required)")
	f.BoolVar(&flags.assets, "assets", false, "also export the embedded public assets")
	f.BoolVar(&flags.strict, "strict", false, "fail when any slot failed")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func loadConfig(cmd *cobra.Command, root *rootFlags) (config.AppConfig, error) {
	cfg, err := config.NewLoader(root.configPath, version.Version).Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.LogService,
		Version: version.Version,
	})
	return cfg, nil
}

func runBuild(cmd *cobra.Command, root *rootFlags, flags *buildFlags) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}

	var recorder loader.RunRecorder
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	rt, err := daemon.BuildRuntime(cfg, cache.NewNoOpCache(), recorder, xglog.WithComponent("build"))
	if err != nil {
		return err
	}
	defer rt.Close()

	pg, err := page.ParseBytes(site.Template())
	if err != nil {
		return err
	}
	res := rt.Loader.Compose(ctx, pg, rt.Manifest)

	if err := os.MkdirAll(flags.outDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	written := 1
	if flags.assets {
		mounts, fetched, err := exportAssets(ctx, cfg, rt)
		if err != nil {
			return err
		}
		n, err := publish.Export(ctx, flags.outDir, pg, mounts...)
		if err != nil {
			return err
		}
		m, err := publish.WriteResources(ctx, flags.outDir, fetched)
		if err != nil {
			return err
		}
		written = n + m
	} else if err := publish.WritePage(ctx, filepath.Join(flags.outDir, publish.PageName), pg); err != nil {
		return err
	}

	printOutcomes(cmd, res)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d file(s) to %s\n", written, flags.outDir)

	if failed := res.Count(loader.StatusFailed) + res.Count(loader.StatusAbandoned); flags.strict && failed > 0 {
		return fmt.Errorf("%d slot(s) did not render", failed)
	}
	return nil
}

func printOutcomes(cmd *cobra.Command, res loader.Result) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tKIND\tOUTCOME\tDETAIL")
	for _, o := range res.Outcomes {
		detail := o.Title
		if o.Failure != nil {
			detail = o.Failure.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Selector, o.Kind, o.Status, detail)
	}
	_ = tw.Flush()
}
