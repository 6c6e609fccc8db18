// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package records decodes the static economic data files that feed the charts.
//
// The files are not validated: any well-formed JSON object or array is a data
// file. Fields keep whatever JSON type the file used; only the descriptive
// strings the loader needs are read, and only when they are strings.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrMalformed is returned when a body is not well-formed JSON or its top
// level is neither an object nor an array.
var ErrMalformed = errors.New("records: malformed data file")

// Record is one observation. Values are kept as decoded.
type Record struct {
	Date      any
	Value     any
	Indicator any
}

// File is a data document with its descriptive metadata. Metadata that is not
// a string in the source is left empty.
type File struct {
	Title    string
	Subtitle string
	Source   string
	Units    string
	Data     []Record
}

// Decode parses a data file. Both {"data": [...], ...} and a bare [...] of
// records are accepted. A missing or non-array "data" yields no records, and
// array entries that are not objects yield empty records.
func Decode(raw []byte) (File, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return File{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch v := doc.(type) {
	case []any:
		return File{Data: decodeRecords(v)}, nil
	case map[string]any:
		f := File{
			Title:    stringField(v, "title"),
			Subtitle: stringField(v, "subtitle"),
			Source:   stringField(v, "source"),
			Units:    stringField(v, "units"),
		}
		if arr, ok := v["data"].([]any); ok {
			f.Data = decodeRecords(arr)
		}
		return f, nil
	default:
		return File{}, fmt.Errorf("%w: top level is %T", ErrMalformed, doc)
	}
}

func decodeRecords(arr []any) []Record {
	recs := make([]Record, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		recs[i] = Record{Date: m["date"], Value: m["value"], Indicator: m["indicator"]}
	}
	return recs
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// FirstIndicator returns the indicator label of the first record, if any.
// Only the first record is consulted, and only a non-blank string counts.
func (f File) FirstIndicator() (string, bool) {
	if len(f.Data) == 0 {
		return "", false
	}
	s, ok := f.Data[0].Indicator.(string)
	if !ok {
		return "", false
	}
	label := strings.TrimSpace(norm.NFC.String(s))
	if label == "" {
		return "", false
	}
	return label, true
}

// DashboardTitle derives the title of dashboard slot n: the first record's
// indicator when present, otherwise "Dashboard {n}".
func (f File) DashboardTitle(n int) string {
	if label, ok := f.FirstIndicator(); ok {
		return label
	}
	return DefaultDashboardTitle(n)
}

// DefaultDashboardTitle is the positional fallback label.
func DefaultDashboardTitle(n int) string {
	return fmt.Sprintf("Dashboard %d", n)
}
