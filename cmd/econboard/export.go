// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/econboard/internal/chartspec"
	"github.com/ManuGH/econboard/internal/config"
	"github.com/ManuGH/econboard/internal/daemon"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/publish"
	"github.com/ManuGH/econboard/internal/site"
)

// resourceDirs are the directories chart paths live in.
var resourceDirs = []string{"graphs", "data"}

// exportAssets returns what `build --assets` copies next to the page: the
// embedded static files plus the chart and data files of the configured
// origin, so the export shows the data the page was composed from.
func exportAssets(ctx context.Context, cfg config.AppConfig, rt *daemon.Runtime) ([]publish.Mount, map[string][]byte, error) {
	origin := cfg.DataOrigin()
	if origin == "" {
		return []publish.Mount{{FS: site.PublicFS()}}, nil, nil
	}

	static, err := fs.Sub(site.PublicFS(), "static")
	if err != nil {
		return nil, nil, fmt.Errorf("embedded static assets: %w", err)
	}
	mounts := []publish.Mount{{Dir: "static", FS: static}}

	u, err := url.Parse(origin)
	if err != nil {
		return nil, nil, fmt.Errorf("data origin: %w", err)
	}
	if u.Scheme == "file" {
		root := filepath.FromSlash(u.Path)
		for _, d := range resourceDirs {
			p := filepath.Join(root, d)
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				mounts = append(mounts, publish.Mount{Dir: d, FS: os.DirFS(p)})
			}
		}
		return mounts, nil, nil
	}

	return mounts, fetchReferenced(ctx, rt), nil
}

// fetchReferenced downloads every relative resource the manifest names,
// including relative urls inside chart specifications. Resources that fail
// already show a diagnostic on the page and are left out.
func fetchReferenced(ctx context.Context, rt *daemon.Runtime) map[string][]byte {
	logger := xglog.WithComponentFromContext(ctx, "build")
	files := map[string][]byte{}
	seen := map[string]bool{}

	var visit func(resource string)
	visit = func(resource string) {
		if !isRelativeResource(resource) || seen[resource] {
			return
		}
		seen[resource] = true
		body, err := rt.Fetcher.Get(ctx, resource)
		if err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "build.export_skipped").
				Str(xglog.FieldPath, resource).
				Msg("resource not exported")
			return
		}
		files[resource] = body
		if spec, err := chartspec.Parse(body); err == nil {
			collectURLs(map[string]any(spec), visit)
		}
	}

	for _, s := range rt.Manifest.Slots {
		collectURLs(map[string]any(s.Spec), visit)
		visit(s.SpecURL)
		visit(s.DataURL)
	}
	if d := rt.Manifest.Dashboards; d != nil {
		collectURLs(map[string]any(d.Template), visit)
		for n := 1; n <= d.Count; n++ {
			visit(d.DataURLFor(n))
		}
	}
	return files
}

// collectURLs calls visit for every string under a "url" key of a spec tree.
func collectURLs(v any, visit func(string)) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && k == "url" {
				visit(s)
				continue
			}
			collectURLs(child, visit)
		}
	case []any:
		for _, child := range t {
			collectURLs(child, visit)
		}
	}
}

func isRelativeResource(p string) bool {
	if p == "" || strings.Contains(p, "://") || strings.HasPrefix(p, "/") {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
