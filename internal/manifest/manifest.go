// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manifest declares which chart goes into which page slot.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/econboard/internal/chartspec"
	"github.com/ManuGH/econboard/internal/site"
	"github.com/ManuGH/econboard/internal/validate"
)

// IndexPlaceholder is replaced by the dashboard number in set patterns.
const IndexPlaceholder = "{n}"

// MaxDashboards bounds the dashboard set.
const MaxDashboards = 64

var ErrUnsupportedFormat = errors.New("manifest: unsupported format")

// Manifest is the static slot list of a page.
type Manifest struct {
	Slots      []Slot        `yaml:"slots" toml:"slots"`
	Dashboards *DashboardSet `yaml:"dashboards,omitempty" toml:"dashboards,omitempty"`
}

// Slot is one independently rendered chart.
type Slot struct {
	Selector string             `yaml:"selector" toml:"selector"`
	SpecURL  string             `yaml:"spec_url,omitempty" toml:"spec_url,omitempty"`
	Spec     chartspec.Document `yaml:"spec,omitempty" toml:"spec,omitempty"`
	DataURL  string             `yaml:"data_url,omitempty" toml:"data_url,omitempty"`
	Width    chartspec.Size     `yaml:"width,omitempty" toml:"width,omitempty"`
	Height   chartspec.Size     `yaml:"height,omitempty" toml:"height,omitempty"`
}

// DashboardSet is the sequential run of slots 1..Count sharing one template.
type DashboardSet struct {
	Count    int                `yaml:"count" toml:"count"`
	Selector string             `yaml:"selector" toml:"selector"` // e.g. "#dashboard{n}"
	DataURL  string             `yaml:"data_url" toml:"data_url"` // e.g. "data/dashboard{n}.json"
	Width    chartspec.Size     `yaml:"width,omitempty" toml:"width,omitempty"`
	Height   chartspec.Size     `yaml:"height,omitempty" toml:"height,omitempty"`
	Template chartspec.Document `yaml:"template" toml:"template"`
}

// SelectorFor returns the selector of dashboard n.
func (d *DashboardSet) SelectorFor(n int) string {
	return strings.ReplaceAll(d.Selector, IndexPlaceholder, strconv.Itoa(n))
}

// DataURLFor returns the data path of dashboard n.
func (d *DashboardSet) DataURLFor(n int) string {
	return strings.ReplaceAll(d.DataURL, IndexPlaceholder, strconv.Itoa(n))
}

// Counts returns the number of independent slots and dashboards.
func (m *Manifest) Counts() (charts, dashboards int) {
	if m.Dashboards != nil {
		dashboards = m.Dashboards.Count
	}
	return len(m.Slots), dashboards
}

// Default returns the manifest shipped with the binary.
func Default() (*Manifest, error) {
	return Parse(site.DefaultManifest(), site.DefaultManifestName)
}

// Load reads a manifest file. The extension picks the decoder.
func Load(path string) (*Manifest, error) {
	path = filepath.Clean(path)
	// #nosec G304 -- manifest path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes data as YAML or TOML according to name's extension,
// normalizes inline specifications and validates the result.
func Parse(data []byte, name string) (*Manifest, error) {
	var m Manifest
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		if err := decodeYAML(data, &m); err != nil {
			return nil, err
		}
	case ".toml":
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, fmt.Errorf("manifest: toml: %w", err)
		}
		if unknown := unknownTOMLKeys(md.Undecoded()); len(unknown) > 0 {
			return nil, fmt.Errorf("manifest: unknown keys %v", unknown)
		}
	default:
		return nil, fmt.Errorf("%w: %q (want .yaml, .yml or .toml)", ErrUnsupportedFormat, ext)
	}

	if err := m.normalize(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// unknownTOMLKeys drops keys below inline specifications, which are free-form.
func unknownTOMLKeys(keys []toml.Key) []string {
	var out []string
	for _, k := range keys {
		if len(k) >= 2 && ((k[0] == "slots" && k[1] == "spec") || (k[0] == "dashboards" && k[1] == "template")) {
			continue
		}
		out = append(out, k.String())
	}
	return out
}

func decodeYAML(data []byte, m *Manifest) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("manifest: yaml: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("manifest: multiple documents or trailing content")
	}
	return nil
}

// normalize turns decoder-specific values (int, int64, map[any]any) into
// the JSON shapes the rest of the service expects.
func (m *Manifest) normalize() error {
	for i := range m.Slots {
		if m.Slots[i].Spec == nil {
			continue
		}
		doc, err := chartspec.FromValue(map[string]any(m.Slots[i].Spec))
		if err != nil {
			return fmt.Errorf("manifest: slot %s: inline spec: %w", m.Slots[i].Selector, err)
		}
		m.Slots[i].Spec = doc
	}
	if m.Dashboards != nil && m.Dashboards.Template != nil {
		doc, err := chartspec.FromValue(map[string]any(m.Dashboards.Template))
		if err != nil {
			return fmt.Errorf("manifest: dashboard template: %w", err)
		}
		m.Dashboards.Template = doc
	}
	return nil
}

// Validate checks selectors, sources and the dashboard set.
func (m *Manifest) Validate() error {
	v := validate.New()
	seen := make(map[string]string)

	claim := func(field, selector string) {
		if prev, dup := seen[selector]; dup {
			v.AddError(field, fmt.Sprintf("selector already used by %s", prev), selector)
			return
		}
		seen[selector] = field
	}

	for i, s := range m.Slots {
		field := fmt.Sprintf("slots[%d]", i)
		v.Selector(field+".selector", s.Selector)
		claim(field+".selector", s.Selector)

		switch {
		case s.SpecURL == "" && s.Spec == nil:
			v.AddError(field, "one of spec or spec_url is required", nil)
		case s.SpecURL != "" && s.Spec != nil:
			v.AddError(field, "spec and spec_url are mutually exclusive", s.SpecURL)
		case s.SpecURL != "":
			v.ResourcePath(field+".spec_url", s.SpecURL)
		}
		if s.DataURL != "" {
			v.ResourcePath(field+".data_url", s.DataURL)
		}
	}

	if d := m.Dashboards; d != nil {
		v.Range("dashboards.count", d.Count, 1, MaxDashboards)
		if !strings.Contains(d.Selector, IndexPlaceholder) {
			v.AddError("dashboards.selector", "must contain "+IndexPlaceholder, d.Selector)
		}
		if !strings.Contains(d.DataURL, IndexPlaceholder) {
			v.AddError("dashboards.data_url", "must contain "+IndexPlaceholder, d.DataURL)
		}
		if d.Template == nil {
			v.AddError("dashboards.template", "template specification is required", nil)
		} else if !d.Template.HasView() {
			v.AddError("dashboards.template", "template has no mark, layer or composition", nil)
		}
		if v.IsValid() {
			for n := 1; n <= d.Count; n++ {
				field := fmt.Sprintf("dashboards[%d]", n)
				v.Selector(field+".selector", d.SelectorFor(n))
				claim(field+".selector", d.SelectorFor(n))
				v.ResourcePath(field+".data_url", d.DataURLFor(n))
			}
		}
	}

	return v.Err()
}
