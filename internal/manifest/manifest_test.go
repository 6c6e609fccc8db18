// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/econboard/internal/chartspec"
)

func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	charts, dashboards := m.Counts()
	assert.Equal(t, 6, charts)
	assert.Equal(t, 4, dashboards)

	var vis4 *Slot
	for i := range m.Slots {
		if m.Slots[i].Selector == "#vis4" {
			vis4 = &m.Slots[i]
		}
	}
	require.NotNil(t, vis4)
	assert.Equal(t, "graphs/ethiopia_chart.json", vis4.SpecURL)
	assert.Equal(t, chartspec.Container(), vis4.Width)
	assert.Equal(t, chartspec.Pixels(280), vis4.Height)

	assert.Equal(t, "#dashboard3", m.Dashboards.SelectorFor(3))
	assert.Equal(t, "data/dashboard3.json", m.Dashboards.DataURLFor(3))
	assert.True(t, m.Dashboards.Template.HasView())
}

func TestParse_NormalizesInlineSpecs(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)

	var inline chartspec.Document
	for _, s := range m.Slots {
		if s.Spec != nil {
			inline = s.Spec
		}
	}
	require.NotNil(t, inline)

	mark, ok := inline["mark"].(map[string]any)
	require.True(t, ok, "nested YAML maps must become map[string]any")
	assert.Equal(t, "bar", mark["type"])

	_, err = json.Marshal(inline)
	assert.NoError(t, err)
}

func TestParse_TOML(t *testing.T) {
	raw := `
[[slots]]
selector = "#vis1"
spec_url = "graphs/unemployment.json"
width = "container"
height = 300

[[slots]]
selector = "#vis2"
data_url = "data/inflation.json"
[slots.spec]
mark = "line"
[slots.spec.encoding.x]
field = "date"
type = "temporal"

[dashboards]
count = 2
selector = "#dash{n}"
data_url = "data/d{n}.json"
[dashboards.template]
mark = "area"
`
	m, err := Parse([]byte(raw), "page.toml")
	require.NoError(t, err)
	require.Len(t, m.Slots, 2)
	assert.Equal(t, chartspec.Container(), m.Slots[0].Width)
	assert.Equal(t, chartspec.Pixels(300), m.Slots[0].Height)
	assert.Equal(t, "line", m.Slots[1].Spec["mark"])

	enc := m.Slots[1].Spec["encoding"].(map[string]any)
	assert.Equal(t, "temporal", enc["x"].(map[string]any)["type"])
	assert.Equal(t, "#dash2", m.Dashboards.SelectorFor(2))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown field", raw: "slots:\n  - selector: '#a'\n    spec_url: a.json\n    colour: red\n"},
		{name: "no source", raw: "slots:\n  - selector: '#a'\n"},
		{name: "two sources", raw: "slots:\n  - selector: '#a'\n    spec_url: a.json\n    spec: {mark: bar}\n"},
		{name: "bad selector", raw: "slots:\n  - selector: '.a'\n    spec_url: a.json\n"},
		{name: "duplicate selector", raw: "slots:\n  - selector: '#a'\n    spec_url: a.json\n  - selector: '#a'\n    spec_url: b.json\n"},
		{name: "escaping path", raw: "slots:\n  - selector: '#a'\n    spec_url: ../a.json\n"},
		{name: "bad size", raw: "slots:\n  - selector: '#a'\n    spec_url: a.json\n    width: wide\n"},
		{name: "dashboard without placeholder", raw: "dashboards:\n  count: 2\n  selector: '#d'\n  data_url: d{n}.json\n  template: {mark: line}\n"},
		{name: "dashboard count", raw: "dashboards:\n  count: 0\n  selector: '#d{n}'\n  data_url: d{n}.json\n  template: {mark: line}\n"},
		{name: "dashboard template", raw: "dashboards:\n  count: 1\n  selector: '#d{n}'\n  data_url: d{n}.json\n  template: {title: x}\n"},
		{name: "dashboard clashes with slot", raw: "slots:\n  - selector: '#d1'\n    spec_url: a.json\ndashboards:\n  count: 1\n  selector: '#d{n}'\n  data_url: d{n}.json\n  template: {mark: line}\n"},
		{name: "trailing document", raw: "slots: []\n---\nslots: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw), "m.yaml")
			assert.Error(t, err)
		})
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse([]byte(`{}`), "m.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.yml")
	require.NoError(t, os.WriteFile(path, []byte("slots:\n  - selector: '#only'\n    spec_url: graphs/x.json\n"), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, m.Dashboards)
	assert.Len(t, m.Slots, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_TOMLUnknownKey(t *testing.T) {
	raw := `
[[slots]]
selector = "#vis1"
spec_url = "graphs/a.json"
colour = "red"
`
	_, err := Parse([]byte(raw), "page.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}
