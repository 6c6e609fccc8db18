// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package page

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const template = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body>
  <section><div id="vis1" class="chart"><p class="placeholder">Loading…</p></div></section>
  <div id="vis4"></div>
  <footer>&copy; <span id="year">2024</span></footer>
</body></html>`

func newPage(t *testing.T) *Page {
	t.Helper()
	p, err := ParseBytes([]byte(template))
	require.NoError(t, err)
	return p
}

func TestHas(t *testing.T) {
	p := newPage(t)
	assert.True(t, p.Has("#vis1"))
	assert.True(t, p.Has("#year"))
	assert.False(t, p.Has("#vis9"))
	assert.False(t, p.Has("vis1"), "bare ids are not selectors")
	assert.False(t, p.Has(".chart"), "class selectors are not supported")
	assert.False(t, p.Has("#"))
}

func TestDuplicateIDResolvesToFirstMatch(t *testing.T) {
	p, err := ParseBytes([]byte(`<html><body><div id="vis1">first</div><div id="vis1">second</div></body></html>`))
	require.NoError(t, err)
	require.True(t, p.Has("#vis1"))

	require.NoError(t, p.SetText("#vis1", "drawn"))

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), `<div id="vis1">drawn</div><div id="vis1">second</div>`)
}

func TestReplaceHTML(t *testing.T) {
	p := newPage(t)
	require.NoError(t, p.ReplaceHTML("#vis1", `<div class="vega-embed"></div><script type="application/json">{"a":1}</script>`))

	inner, ok := p.InnerHTML("#vis1")
	require.True(t, ok)
	assert.NotContains(t, inner, "Loading")
	assert.Contains(t, inner, `class="vega-embed"`)
	assert.Contains(t, inner, `{"a":1}`)

	err := p.ReplaceHTML("#missing", "<p>x</p>")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestShowDiagnosticEscapesMessage(t *testing.T) {
	p := newPage(t)
	require.NoError(t, p.ShowDiagnostic("#vis4", `Could not load <graphs/ethiopia_chart.json>`))

	inner, ok := p.InnerHTML("#vis4")
	require.True(t, ok)
	assert.Contains(t, inner, `class="chart-error"`)
	assert.Contains(t, inner, `role="alert"`)
	assert.Contains(t, inner, "&lt;graphs/ethiopia_chart.json&gt;")
}

func TestSetText(t *testing.T) {
	p := newPage(t)
	require.NoError(t, p.SetText("#year", "2026"))
	inner, _ := p.InnerHTML("#year")
	assert.Equal(t, "2026", inner)
}

func TestRender(t *testing.T) {
	p := newPage(t)
	require.NoError(t, p.ShowDiagnostic("#vis4", "failed"))

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, `<div id="vis4"><p class="chart-error" role="alert">failed</p></div>`)
	assert.Contains(t, out, "Loading…", "untouched slots keep their placeholder")
}

func TestConcurrentReplacements(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, `<div id="slot%d"></div>`, i)
	}
	b.WriteString("</body></html>")

	p, err := ParseBytes([]byte(b.String()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sel := fmt.Sprintf("#slot%d", i)
			if i%2 == 0 {
				_ = p.ReplaceHTML(sel, fmt.Sprintf("<span>%d</span>", i))
			} else {
				_ = p.ShowDiagnostic(sel, fmt.Sprintf("failed %d", i))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		inner, ok := p.InnerHTML(fmt.Sprintf("#slot%d", i))
		require.True(t, ok)
		if i%2 == 0 {
			assert.Equal(t, fmt.Sprintf("<span>%d</span>", i), inner)
		} else {
			assert.Contains(t, inner, fmt.Sprintf("failed %d", i))
		}
	}
}
