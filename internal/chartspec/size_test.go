// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package chartspec

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"", Size{}, false},
		{"container", Container(), false},
		{" Container ", Container(), false},
		{"400", Pixels(400), false},
		{"250px", Pixels(250), false},
		{"0", Size{}, true},
		{"-10", Size{}, true},
		{"wide", Size{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSizeValue(t *testing.T) {
	if v := Container().Value(); v != "container" {
		t.Errorf("Container().Value() = %v", v)
	}
	if v := Pixels(300).Value(); v != 300 {
		t.Errorf("Pixels(300).Value() = %v", v)
	}
	if s := Pixels(300).String(); s != "300" {
		t.Errorf("Pixels(300).String() = %q", s)
	}
	if !(Size{}).IsZero() {
		t.Error("zero Size must report IsZero")
	}
}

func TestSizeText(t *testing.T) {
	var s Size
	if err := s.UnmarshalText([]byte("640px")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if s != Pixels(640) {
		t.Errorf("UnmarshalText(640px) = %+v", s)
	}
	out, err := Container().MarshalText()
	if err != nil || string(out) != "container" {
		t.Errorf("MarshalText = %q, %v", out, err)
	}
	if err := s.UnmarshalText([]byte("wide")); err == nil {
		t.Error("UnmarshalText(wide) must fail")
	}
}
