// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package render is the boundary to the browser-side embedding library.
package render

import (
	"context"
	"errors"

	"github.com/ManuGH/econboard/internal/chartspec"
)

// ErrInvalidSpec is returned when a composed specification cannot be embedded.
var ErrInvalidSpec = errors.New("render: invalid chart specification")

// RendererSVG is the only output the page asks for.
const RendererSVG = "svg"

// Options is the fixed configuration handed to the embedding call.
type Options struct {
	Width    chartspec.Size `json:"-"`
	Height   chartspec.Size `json:"-"`
	Renderer string         `json:"renderer"`
	Actions  bool           `json:"actions"`
}

// DefaultOptions returns SVG output with UI actions disabled.
func DefaultOptions(width, height chartspec.Size) Options {
	return Options{
		Width:    width,
		Height:   height,
		Renderer: RendererSVG,
		Actions:  false,
	}
}

// Fragment is the markup that replaces a slot's content.
type Fragment struct {
	HTML string
}

// Renderer hands a composed specification to the embedding library.
type Renderer interface {
	Embed(ctx context.Context, selector string, spec chartspec.Document, opts Options) (Fragment, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, selector string, spec chartspec.Document, opts Options) (Fragment, error)

func (f RendererFunc) Embed(ctx context.Context, selector string, spec chartspec.Document, opts Options) (Fragment, error) {
	return f(ctx, selector, spec, opts)
}
