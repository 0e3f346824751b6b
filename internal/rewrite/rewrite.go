// Package rewrite performs the textual substitutions applied to code shared
// by both dialects: GLSL type names become their HLSL equivalents and,
// optionally, HLSL mul calls become infix products for GLSL.
package rewrite

import (
	"strings"

	"github.com/HugoDaniel/csl/internal/diagnostic"
)

// Replace is one whole-token substitution.
type Replace struct {
	From, To string
}

// Types are the GLSL type names rewritten for HLSL output. Non-square
// matrices (matNxM) are left alone: the dialects disagree on the order of
// their dimensions.
var Types = []Replace{
	{"vec2", "float2"},
	{"vec3", "float3"},
	{"vec4", "float4"},
	{"ivec2", "int2"},
	{"ivec3", "int3"},
	{"ivec4", "int4"},
	{"uvec2", "uint2"},
	{"uvec3", "uint3"},
	{"uvec4", "uint4"},
	{"bvec2", "bool2"},
	{"bvec3", "bool3"},
	{"bvec4", "bool4"},
	{"mat2", "float2x2"},
	{"mat3", "float3x3"},
	{"mat4", "float4x4"},
}

var types = func() map[string]string {
	m := make(map[string]string, len(Types))
	for _, r := range Types {
		m[r.From] = r.To
	}
	return m
}()

// GLSLToHLSL rewrites GLSL type names in line to HLSL ones and turns a
// leading "shared " qualifier into "groupshared ". Only whole identifiers
// are replaced, so "vec4" in "myvec4" or "sharedMemory" is kept.
func GLSLToHLSL(line string) string {
	indent := len(line) - len(strings.TrimLeft(line, " \t"))
	var sb strings.Builder
	sb.Grow(len(line) + 8)
	sb.WriteString(line[:indent])
	rest := line[indent:]
	if strings.HasPrefix(rest, "shared ") {
		sb.WriteString("groupshared ")
		rest = rest[len("shared "):]
	}

	for i := 0; i < len(rest); {
		c := rest[i]
		if !isIdentStart(c) {
			sb.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(rest) && isIdent(rest[j]) {
			j++
		}
		word := rest[i:j]
		if to, ok := types[word]; ok && (i == 0 || !isIdent(rest[i-1])) {
			sb.WriteString(to)
		} else {
			sb.WriteString(word)
		}
		i = j
	}
	return sb.String()
}

// MulToOperator rewrites every mul(a, b) call in line to (a * b). Arguments
// are rewritten recursively. A call whose parentheses do not balance or that
// does not have exactly two arguments is an UnsupportedConstruct error.
func MulToOperator(line string) (string, error) {
	const call = "mul"
	var sb strings.Builder
	for i := 0; i < len(line); {
		j := strings.Index(line[i:], call)
		if j < 0 {
			sb.WriteString(line[i:])
			break
		}
		start := i + j
		end := start + len(call)
		open := end
		for open < len(line) && (line[open] == ' ' || line[open] == '\t') {
			open++
		}
		if start > 0 && isIdent(line[start-1]) || open >= len(line) || line[open] != '(' || end < len(line) && isIdent(line[end]) {
			sb.WriteString(line[i:end])
			i = end
			continue
		}

		args, closing, err := splitArgs(line, open)
		if err != nil {
			return "", err
		}
		if len(args) != 2 {
			return "", diagnostic.New(diagnostic.UnsupportedConstruct,
				"mul expects 2 arguments, found %d", len(args)).WithText(line, start+1)
		}
		a, err := MulToOperator(strings.TrimSpace(args[0]))
		if err != nil {
			return "", err
		}
		b, err := MulToOperator(strings.TrimSpace(args[1]))
		if err != nil {
			return "", err
		}

		sb.WriteString(line[i:start])
		sb.WriteString("(")
		sb.WriteString(a)
		sb.WriteString(" * ")
		sb.WriteString(b)
		sb.WriteString(")")
		i = closing + 1
	}
	return sb.String(), nil
}

// splitArgs splits the argument list whose opening parenthesis is at open.
// It returns the top-level arguments and the index of the closing one.
func splitArgs(line string, open int) ([]string, int, error) {
	var args []string
	depth := 0
	from := open + 1
	for i := open + 1; i < len(line); i++ {
		switch line[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				args = append(args, line[from:i])
				if len(args) == 1 && strings.TrimSpace(args[0]) == "" {
					args = nil
				}
				return args, i, nil
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, line[from:i])
				from = i + 1
			}
		}
	}
	return nil, 0, diagnostic.New(diagnostic.UnsupportedConstruct,
		"unbalanced parentheses in mul call").WithText(line, open+1)
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdent(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
