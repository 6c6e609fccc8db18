// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package render

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/ManuGH/econboard/internal/chartspec"
)

// VegaEmbed emits the container and JSON payload that the page bootstrap
// passes to vegaEmbed(selector, spec, options).
type VegaEmbed struct{}

// NewVegaEmbed returns the default renderer.
func NewVegaEmbed() *VegaEmbed { return &VegaEmbed{} }

type embedPayload struct {
	Spec    chartspec.Document `json:"spec"`
	Options map[string]any     `json:"options"`
}

// Embed validates spec and builds the fragment. Nothing in spec is modified.
func (VegaEmbed) Embed(ctx context.Context, selector string, spec chartspec.Document, opts Options) (Fragment, error) {
	if err := ctx.Err(); err != nil {
		return Fragment{}, err
	}
	if err := Validate(spec); err != nil {
		return Fragment{}, err
	}

	payload := embedPayload{Spec: spec, Options: embedOptions(opts)}
	// json.Marshal escapes <, > and & so the payload cannot close the script element.
	raw, err := json.Marshal(payload)
	if err != nil {
		return Fragment{}, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	var b strings.Builder
	b.WriteString(`<div class="chart-view" data-embed-target></div>`)
	b.WriteString(`<script type="application/json" data-vega-embed="`)
	b.WriteString(html.EscapeString(selector))
	b.WriteString(`">`)
	b.Write(raw)
	b.WriteString(`</script>`)
	return Fragment{HTML: b.String()}, nil
}

func embedOptions(opts Options) map[string]any {
	renderer := opts.Renderer
	if renderer == "" {
		renderer = RendererSVG
	}
	out := map[string]any{
		"renderer": renderer,
		"actions":  opts.Actions,
	}
	// container sizing lives in the spec itself; the embed options only take pixels
	if !opts.Width.Container && opts.Width.Pixels > 0 {
		out["width"] = opts.Width.Pixels
	}
	if !opts.Height.Container && opts.Height.Pixels > 0 {
		out["height"] = opts.Height.Pixels
	}
	return out
}

// Validate rejects specifications the embedding library would refuse.
func Validate(spec chartspec.Document) error {
	if spec == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidSpec)
	}
	if !spec.HasView() {
		return fmt.Errorf("%w: no mark, layer, composition or nested spec", ErrInvalidSpec)
	}
	for _, key := range []string{"width", "height"} {
		v, ok := spec[key]
		if !ok {
			continue
		}
		if !validDimension(v) {
			return fmt.Errorf("%w: %s must be a number or %q", ErrInvalidSpec, key, chartspec.ContainerSize)
		}
	}
	if data, ok := spec["data"]; ok {
		if _, isObj := data.(map[string]any); !isObj && data != nil {
			return fmt.Errorf("%w: data must be an object", ErrInvalidSpec)
		}
	}
	return nil
}

func validDimension(v any) bool {
	switch t := v.(type) {
	case string:
		return t == chartspec.ContainerSize
	case json.Number, float64, float32, int, int64:
		return true
	case map[string]any:
		// {"step": n}
		_, ok := t["step"]
		return ok
	default:
		return false
	}
}
