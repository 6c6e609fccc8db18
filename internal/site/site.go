// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package site embeds the default page template, manifest and data fixtures.
package site

import (
	"embed"
	"io/fs"
)

//go:embed assets/index.html
var pageTemplate []byte

//go:embed assets/manifest.yaml
var defaultManifest []byte

//go:embed all:assets/public
var public embed.FS

// DefaultManifestName is what manifest.Parse uses to pick the YAML decoder.
const DefaultManifestName = "manifest.yaml"

// Template returns a copy of the embedded page template.
func Template() []byte {
	return append([]byte(nil), pageTemplate...)
}

// DefaultManifest returns a copy of the embedded slot manifest.
func DefaultManifest() []byte {
	return append([]byte(nil), defaultManifest...)
}

// PublicFS serves graphs/, data/ and static/ when no data directory is configured.
func PublicFS() fs.FS {
	sub, err := fs.Sub(public, "assets/public")
	if err != nil {
		// the embed pattern above guarantees the directory exists
		panic(err)
	}
	return sub
}
