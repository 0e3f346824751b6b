// Package binding discovers resource binding declarations and assigns
// indices to the ones marked with a placeholder.
//
// GLSL declarations use a flat index space:
//
//	layout(binding = 3) uniform sampler2D a;
//	layout(binding = ?) uniform sampler2D b;
//
// HLSL declarations are keyed by register type and space:
//
//	Texture2D a : register(t3, space1);
//	Texture2D b : register(t?);
//
// Discovery happens while lines are emitted (State.Record); assignment runs
// once over the flattened output (Allocator.Assign).
package binding

import (
	"strconv"
	"strings"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
)

// Placeholder marks an index to be assigned automatically.
const Placeholder = '?'

// RegisterTypes lists the HLSL register types that take part in allocation.
// Declarations using any other type are not bindings.
const RegisterTypes = "tsub"

// Site is one binding declaration found in a line of text.
type Site struct {
	Offset      int  // byte offset of the index text
	Len         int  // length of the index text
	Type        byte // HLSL register type, 0 for GLSL
	Space       uint32
	Index       uint32 // zero for placeholders
	Placeholder bool
}

// Bucket returns the allocation key of the site.
func (s Site) Bucket() Bucket {
	return Bucket{Type: s.Type, Space: s.Space}
}

// Bucket is an independent index space. GLSL uses the zero Bucket.
type Bucket struct {
	Type  byte
	Space uint32
}

func (b Bucket) String() string {
	if b.Type == 0 {
		return "binding"
	}
	return "register " + string(b.Type) + " space" + strconv.FormatUint(uint64(b.Space), 10)
}

// Scan calls fn for every binding declaration of dialect d in text, left to
// right. The returned errors carry the offending text but no file context.
func Scan(text string, d dialect.Dialect, fn func(Site) error) error {
	switch d {
	case dialect.GLSL:
		return scanGLSL(text, fn)
	case dialect.HLSL:
		return scanHLSL(text, fn)
	}
	return nil
}

const (
	glslKeyword = "binding"
	hlslKeyword = "register("
	hlslSpace   = "space"
)

func scanGLSL(text string, fn func(Site) error) error {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], glslKeyword)
		if i < 0 {
			return nil
		}
		start := off + i
		pos := start + len(glslKeyword)
		off = pos
		if start > 0 && isIdent(text[start-1]) || pos < len(text) && isIdent(text[pos]) {
			continue
		}

		pos = skipBlanks(text, pos)
		if pos >= len(text) || text[pos] != '=' {
			if insideLayout(text, start) {
				return diagnostic.New(diagnostic.MissingEquals,
					"expected %q after %q", "=", glslKeyword).WithText(text, pos+1)
			}
			continue
		}
		pos = skipBlanks(text, pos+1)

		site, end, err := readIndex(text, pos)
		if err != nil {
			if insideLayout(text, start) {
				return err
			}
			continue
		}
		off = end
		if err := fn(site); err != nil {
			return err
		}
	}
	return nil
}

func scanHLSL(text string, fn func(Site) error) error {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], hlslKeyword)
		if i < 0 {
			return nil
		}
		start := off + i
		pos := start + len(hlslKeyword)
		off = pos
		if start > 0 && isIdent(text[start-1]) {
			continue
		}

		if pos >= len(text) {
			return diagnostic.New(diagnostic.UnterminatedRegister,
				"expected register type after %q", hlslKeyword).WithText(text, pos+1)
		}
		typ := text[pos]
		if strings.IndexByte(RegisterTypes, typ) < 0 {
			// Other register types (c, for one) are left alone unless
			// they ask for an index.
			if pos+1 < len(text) && text[pos+1] == Placeholder {
				return diagnostic.New(diagnostic.UnsupportedRegisterType,
					"register type %q cannot be assigned automatically, expected one of %q", typ, RegisterTypes).WithText(text, pos+1)
			}
			continue
		}

		site, end, err := readIndex(text, pos+1)
		if err != nil {
			return err
		}
		site.Type = typ

		pos = skipBlanks(text, end)
		if pos < len(text) && text[pos] == ',' {
			pos = skipBlanks(text, pos+1)
			if !strings.HasPrefix(text[pos:], hlslSpace) {
				return diagnostic.New(diagnostic.UnterminatedRegister,
					"expected %q after ',' in register clause", hlslSpace).WithText(text, pos+1)
			}
			pos += len(hlslSpace)
			if pos < len(text) && text[pos] == Placeholder {
				return diagnostic.New(diagnostic.UnsupportedSpacePlaceholder,
					"register space cannot be assigned automatically").WithText(text, pos+1)
			}
			digits := digitRun(text, pos)
			if digits == 0 {
				return diagnostic.New(diagnostic.MissingSpaceIndex,
					"expected a digit after %q", hlslSpace).WithText(text, pos+1)
			}
			space, err := parseIndex(text, pos, digits)
			if err != nil {
				return err
			}
			site.Space = space
			pos = skipBlanks(text, pos+digits)
		}
		if pos >= len(text) || text[pos] != ')' {
			return diagnostic.New(diagnostic.UnterminatedRegister,
				"expected ')' to close register clause").WithText(text, pos+1)
		}
		off = pos + 1

		if err := fn(site); err != nil {
			return err
		}
	}
	return nil
}

// readIndex reads a placeholder or a decimal literal at pos.
func readIndex(text string, pos int) (Site, int, error) {
	if pos < len(text) && text[pos] == Placeholder {
		return Site{Offset: pos, Len: 1, Placeholder: true}, pos + 1, nil
	}
	n := digitRun(text, pos)
	if n == 0 {
		return Site{}, pos, diagnostic.New(diagnostic.MissingIndex,
			"expected a digit or %q as binding index", string(Placeholder)).WithText(text, pos+1)
	}
	index, err := parseIndex(text, pos, n)
	if err != nil {
		return Site{}, pos, err
	}
	return Site{Offset: pos, Len: n, Index: index}, pos + n, nil
}

func parseIndex(text string, pos, n int) (uint32, error) {
	v, err := strconv.ParseUint(text[pos:pos+n], 10, 32)
	if err != nil {
		return 0, diagnostic.Wrap(diagnostic.NumericConversion, err,
			"failed to convert %q to an index", text[pos:pos+n]).WithText(text, pos+1)
	}
	return uint32(v), nil
}

// insideLayout reports whether pos is within the parentheses of a
// layout qualifier.
func insideLayout(text string, pos int) bool {
	i := strings.LastIndex(text[:pos], "layout")
	if i < 0 {
		return false
	}
	depth := 0
	for _, c := range text[i:pos] {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return depth > 0
}

func digitRun(text string, pos int) int {
	n := 0
	for pos+n < len(text) && text[pos+n] >= '0' && text[pos+n] <= '9' {
		n++
	}
	return n
}

func skipBlanks(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t') {
		pos++
	}
	return pos
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
