// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/econboard/internal/fetch"
	"github.com/ManuGH/econboard/internal/manifest"
	"github.com/ManuGH/econboard/internal/page"
	"github.com/ManuGH/econboard/internal/site"
)

// The shipped page references graphs/ethiopia_chart.json, which does not
// exist. The page must still compose with a diagnostic in #vis4.
func TestCompose_ShippedSiteMissingChart(t *testing.T) {
	nop := zerolog.Nop()
	f, err := fetch.New(fetch.Options{
		FileSystem: http.FS(site.PublicFS()),
		Timeout:    5 * time.Second,
		Logger:     &nop,
	})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	m, err := manifest.Default()
	require.NoError(t, err)
	pg, err := page.ParseBytes(site.Template())
	require.NoError(t, err)

	l := newLoader(t, f, nil)
	res := l.Compose(context.Background(), pg, m)

	vis4, ok := res.Outcome("#vis4")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, vis4.Status)
	assert.Equal(t, LoadFailure, vis4.Failure.Kind)
	assert.Equal(t, http.StatusNotFound, vis4.Failure.Status)
	assert.Contains(t, inner(t, pg, "#vis4"), "graphs/ethiopia_chart.json")

	assert.Equal(t, 1, res.Count(StatusFailed), "only #vis4 fails")
	for _, sel := range []string{"#vis1", "#vis2", "#vis3", "#vis5", "#vis7"} {
		o, ok := res.Outcome(sel)
		require.True(t, ok, sel)
		assert.Equal(t, StatusRendered, o.Status, sel)
	}

	titles := map[string]string{}
	for _, o := range res.Outcomes {
		if o.Kind == KindDashboard {
			titles[o.Selector] = o.Title
		}
	}
	assert.Equal(t, map[string]string{
		"#dashboard1": "GDP growth",
		"#dashboard2": "Debt",
		"#dashboard3": "Policy rate",
		"#dashboard4": "Dashboard 4",
	}, titles)

	var buf bytes.Buffer
	require.NoError(t, pg.Render(&buf))
	assert.Contains(t, buf.String(), `data-vega-embed="#vis1"`)
}
