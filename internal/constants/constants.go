// Package constants collects additional-constants fragments and locates
// the structure of the expanded output they are spliced into.
//
// For GLSL output fragments go into the first push constant block:
//
//	layout(push_constant) uniform Constants {
//	    uint frame;
//	    <fragments>
//	} constants;
//
// For HLSL output they go into the first "struct RootConstants".
package constants

import (
	"strings"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/scanner"
)

// Fragment is the body of one additional-constants directive.
type Fragment struct {
	Kind  scanner.Keyword
	Path  string
	Line  int // line of the directive
	Lines []Line
}

// Line is one line of a fragment body with its position in the source.
type Line struct {
	Text string
	Line int
}

// Accepts reports whether fragments of kind k are spliced into output of
// dialect d. Push constants exist only in GLSL and root constants only in
// HLSL; shader constants go to both.
func Accepts(k scanner.Keyword, d dialect.Dialect) bool {
	switch k {
	case scanner.PushConstants:
		return d == dialect.GLSL
	case scanner.RootConstants:
		return d == dialect.HLSL
	case scanner.ShaderConstants:
		return true
	}
	return false
}

// Pending holds fragments in discovery order.
type Pending struct {
	fragments []Fragment
}

// Add appends a fragment.
func (p *Pending) Add(f Fragment) {
	p.fragments = append(p.fragments, f)
}

// Fragments returns the collected fragments in discovery order.
func (p *Pending) Fragments() []Fragment {
	return p.fragments
}

// Len returns the number of collected fragments.
func (p *Pending) Len() int {
	return len(p.fragments)
}

// Lines returns the number of body lines over all fragments.
func (p *Pending) Lines() int {
	n := 0
	for _, f := range p.fragments {
		n += len(f.Lines)
	}
	return n
}

// Anchor is the position of the closing brace of the constants structure.
type Anchor struct {
	Line   int // index into the searched lines
	Column int // byte offset of '}' within that line
}

// FindAnchor locates, in lines, the closing brace of the first constants
// structure for dialect d: the first '}' at or after the structure's
// declaration.
func FindAnchor(lines []string, d dialect.Dialect) (Anchor, error) {
	find := findPushConstant
	what := "layout(push_constant)"
	if d == dialect.HLSL {
		find = findRootConstants
		what = "struct RootConstants"
	}

	for i, line := range lines {
		off, ok := find(line)
		if !ok {
			continue
		}
		for j := i; j < len(lines); j++ {
			text := lines[j]
			from := 0
			if j == i {
				from = off
			}
			if k := strings.IndexByte(text[from:], '}'); k >= 0 {
				return Anchor{Line: j, Column: from + k}, nil
			}
		}
		return Anchor{}, diagnostic.New(diagnostic.ConstantsAnchorMissing,
			"found %q but not its closing brace", what)
	}
	return Anchor{}, diagnostic.New(diagnostic.ConstantsAnchorMissing,
		"additional constants were declared but no %q block was found", what)
}

// findPushConstant matches layout(...push_constant...) and returns the
// offset just past the qualifier's closing parenthesis.
func findPushConstant(line string) (int, bool) {
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], "layout")
		if i < 0 {
			return 0, false
		}
		pos := off + i + len("layout")
		off = pos
		for pos < len(line) && (line[pos] == ' ' || line[pos] == '\t') {
			pos++
		}
		if pos >= len(line) || line[pos] != '(' {
			continue
		}
		end := strings.IndexByte(line[pos:], ')')
		if end < 0 {
			continue
		}
		for _, q := range strings.Split(line[pos+1:pos+end], ",") {
			if strings.TrimSpace(q) == "push_constant" {
				return pos + end + 1, true
			}
		}
	}
	return 0, false
}

func findRootConstants(line string) (int, bool) {
	const decl = "struct"
	const name = "RootConstants"
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], decl)
		if i < 0 {
			return 0, false
		}
		start := off + i
		pos := start + len(decl)
		off = pos
		if start > 0 && isIdent(line[start-1]) {
			continue
		}
		n := pos
		for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
			n++
		}
		if n == pos || !strings.HasPrefix(line[n:], name) {
			continue
		}
		end := n + len(name)
		if end < len(line) && isIdent(line[end]) {
			continue
		}
		return end, true
	}
	return 0, false
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
