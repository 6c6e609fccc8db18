// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package chartspec

import (
	"fmt"
	"strconv"
	"strings"
)

// ContainerSize is the literal that makes a chart follow its container.
const ContainerSize = "container"

// Size is either a fixed pixel size or container-relative sizing.
// The zero value means "leave as is".
type Size struct {
	Pixels    int
	Container bool
}

// Pixels returns a fixed size.
func Pixels(n int) Size { return Size{Pixels: n} }

// Container returns container-relative sizing.
func Container() Size { return Size{Container: true} }

// IsZero reports whether no size was requested.
func (s Size) IsZero() bool { return !s.Container && s.Pixels <= 0 }

// Value returns the specification value: "container" or the pixel count.
func (s Size) Value() any {
	if s.Container {
		return ContainerSize
	}
	return s.Pixels
}

// String implements fmt.Stringer.
func (s Size) String() string {
	switch {
	case s.Container:
		return ContainerSize
	case s.Pixels > 0:
		return strconv.Itoa(s.Pixels)
	default:
		return ""
	}
}

// ParseSize parses "container", a pixel count ("400", "400px") or "".
func ParseSize(raw string) (Size, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return Size{}, nil
	}
	if raw == ContainerSize {
		return Container(), nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(raw, "px"))
	if err != nil || n <= 0 {
		return Size{}, fmt.Errorf("chartspec: invalid size %q (want %q or a positive pixel count)", raw, ContainerSize)
	}
	return Pixels(n), nil
}

// UnmarshalText lets Size be read from YAML and TOML manifests.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
