// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build e2e

package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ManuGH/econboard/internal/api"
	"github.com/ManuGH/econboard/internal/cache"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/daemon"
	xglog "github.com/ManuGH/econboard/internal/log"
)

// Needs a local Chrome and network access to the vega CDN.
func TestBrowser_RendersChartsAroundBrokenSlot(t *testing.T) {
	cfg := config.Defaults()
	rt, err := daemon.BuildRuntime(cfg, cache.NewNoOpCache(), nil, xglog.WithComponent("e2e"))
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	srv := api.New(api.Options{Config: cfg})
	srv.SetRuntime(rt.API())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var vis1, vis4, year string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(ts.URL+"/"),
		chromedp.WaitVisible("#vis1 svg, #vis1 canvas", chromedp.ByQuery),
		chromedp.InnerHTML("#vis1", &vis1, chromedp.ByID),
		chromedp.InnerHTML("#vis4", &vis4, chromedp.ByID),
		chromedp.Text("#year", &year, chromedp.ByID),
	)
	if err != nil {
		t.Fatalf("chromedp: %v", err)
	}

	if !strings.Contains(vis1, "vega-embed") {
		t.Errorf("#vis1 was not drawn: %s", vis1)
	}
	if !strings.Contains(vis4, "graphs/ethiopia_chart.json") {
		t.Errorf("#vis4 should name the missing resource, got %s", vis4)
	}
	if want := fmt.Sprint(time.Now().Year()); year != want {
		t.Errorf("#year = %q, want %q", year, want)
	}

	for _, n := range []int{1, 2, 3, 4} {
		var title string
		sel := fmt.Sprintf("#dashboard%d svg", n)
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
			t.Errorf("dashboard %d not drawn: %v", n, err)
			continue
		}
		_ = chromedp.Run(browserCtx, chromedp.Text(fmt.Sprintf("#dashboard%d", n), &title, chromedp.ByID))
		if strings.TrimSpace(title) == "" {
			t.Errorf("dashboard %d has no title", n)
		}
	}

	// vega-embed replaces a chart it cannot draw with a .chart-error paragraph,
	// which is what a CSP violation in expression evaluation looks like.
	drawn := []string{"#vis1", "#vis2", "#vis3", "#vis5", "#vis7", "#dashboard1", "#dashboard2", "#dashboard3", "#dashboard4"}
	for _, sel := range drawn {
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(sel+" svg", chromedp.ByQuery)); err != nil {
			t.Errorf("%s not drawn: %v", sel, err)
			continue
		}
		var failed bool
		if err := chromedp.Run(browserCtx, chromedp.Evaluate(
			fmt.Sprintf(`document.querySelector(%q + " .chart-error") !== null`, sel), &failed,
		)); err != nil {
			t.Errorf("%s: %v", sel, err)
			continue
		}
		if failed {
			t.Errorf("%s shows the browser-side draw error", sel)
		}
	}
}
