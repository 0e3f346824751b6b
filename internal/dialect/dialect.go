// Package dialect defines the two shading languages a combined source can be
// expanded into.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect is the target shading language of one expansion.
type Dialect uint8

const (
	// HLSL is the DirectX High-Level Shading Language.
	HLSL Dialect = iota + 1
	// GLSL is the OpenGL/Vulkan Shading Language.
	GLSL
)

// All lists every valid dialect in a stable order.
var All = []Dialect{HLSL, GLSL}

func (d Dialect) String() string {
	switch d {
	case HLSL:
		return "hlsl"
	case GLSL:
		return "glsl"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the defined dialects.
func (d Dialect) Valid() bool {
	return d == HLSL || d == GLSL
}

// Ext returns the file extension used for output in this dialect.
func (d Dialect) Ext() string {
	return "." + d.String()
}

// Parse converts a dialect name (case-insensitive) to a Dialect.
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hlsl":
		return HLSL, nil
	case "glsl":
		return GLSL, nil
	}
	return 0, fmt.Errorf("unknown dialect %q (want hlsl or glsl)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Dialect) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dialect %d", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so config files can
// spell the dialect as a plain string.
func (d *Dialect) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
