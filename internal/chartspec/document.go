// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package chartspec models a declarative chart specification as a loosely
// typed document tree. The rendering library owns the schema; only the fields
// the loader rewrites have typed accessors.
package chartspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a specification body is valid JSON but not an object.
var ErrNotObject = errors.New("chartspec: specification is not a JSON object")

const (
	keyData   = "data"
	keyURL    = "url"
	keyWidth  = "width"
	keyHeight = "height"
	keyTitle  = "title"
	keyText   = "text"
)

// viewKeys are the top-level keys that make a document drawable on its own.
var viewKeys = []string{"mark", "layer", "concat", "hconcat", "vconcat", "facet", "repeat", "spec"}

// Document is a specification tree as produced by encoding/json with UseNumber.
type Document map[string]any

// Parse decodes a JSON object into a Document. Numbers are kept as json.Number
// so the document re-encodes without float drift.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("chartspec: decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("chartspec: trailing content after specification")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Document(obj), nil
}

// FromValue normalises an arbitrary decoded tree (YAML, TOML) into a Document
// by round-tripping it through JSON.
func FromValue(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chartspec: encode: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the document as compact JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// Clone returns an alias-free deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneSlice(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return Document(cloneMap(t))
	case []any:
		return cloneSlice(t)
	default:
		// Scalars (string, bool, json.Number, float64, nil) are immutable.
		return v
	}
}

// HasView reports whether the document declares a view (mark, layer,
// composition or nested spec).
func (d Document) HasView() bool {
	for _, k := range viewKeys {
		if _, ok := d[k]; ok {
			return true
		}
	}
	return false
}

// DataURL returns data.url when it is a string.
func (d Document) DataURL() (string, bool) {
	data, ok := d[keyData].(map[string]any)
	if !ok {
		return "", false
	}
	u, ok := data[keyURL].(string)
	return u, ok
}

// SetDataURL overwrites data.url, creating the data object when missing.
// Every other key of data (format, name, ...) is left alone.
func (d Document) SetDataURL(u string) {
	data, ok := d[keyData].(map[string]any)
	if !ok {
		data = make(map[string]any, 1)
		d[keyData] = data
	}
	data[keyURL] = u
}

// SetWidth overwrites the width field.
func (d Document) SetWidth(s Size) {
	if s.IsZero() {
		return
	}
	d[keyWidth] = s.Value()
}

// SetHeight overwrites the height field.
func (d Document) SetHeight(s Size) {
	if s.IsZero() {
		return
	}
	d[keyHeight] = s.Value()
}

// SetSize applies both dimensions; zero sizes leave the field untouched.
func (d Document) SetSize(width, height Size) {
	d.SetWidth(width)
	d.SetHeight(height)
}

// Title returns the title text. Both the string form and the
// {"text": ...} object form are understood.
func (d Document) Title() string {
	switch t := d[keyTitle].(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t[keyText].(string); ok {
			return s
		}
	}
	return ""
}

// SetTitle replaces the title text, keeping title styling when the title is
// an object.
func (d Document) SetTitle(text string) {
	if obj, ok := d[keyTitle].(map[string]any); ok {
		obj[keyText] = text
		return
	}
	d[keyTitle] = text
}
