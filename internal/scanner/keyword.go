package scanner

import "strings"

// Keyword is a directive recognized by the preprocessor.
type Keyword uint8

const (
	// None tags text that precedes the first keyword of a line.
	None Keyword = iota
	HLSL
	GLSL
	Both
	Include
	PushConstants
	RootConstants
	ShaderConstants
)

var keywordText = [...]string{
	None:            "",
	HLSL:            "#hlsl",
	GLSL:            "#glsl",
	Both:            "#both",
	Include:         "#include",
	PushConstants:   "#additional_push_constants",
	RootConstants:   "#additional_root_constants",
	ShaderConstants: "#additional_shader_constants",
}

// Constants lists the additional-constants keywords.
var Constants = []Keyword{PushConstants, RootConstants, ShaderConstants}

// Dialects lists the keywords that tag code with a dialect.
var Dialects = []Keyword{HLSL, GLSL, Both}

func (k Keyword) String() string {
	if int(k) < len(keywordText) {
		return keywordText[k]
	}
	return "#unknown"
}

// IsConstants reports whether k is one of the additional-constants keywords.
func (k Keyword) IsConstants() bool {
	return k == PushConstants || k == RootConstants || k == ShaderConstants
}

// Match is one occurrence of a keyword on a line. Start and End are byte
// offsets of the keyword text.
type Match struct {
	Keyword Keyword
	Start   int
	End     int
}

// Find returns the first occurrence of k in line. An occurrence followed by
// an identifier character (as in "#hlsl_version") does not count.
func Find(line string, k Keyword) (Match, bool) {
	text := k.String()
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], text)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(text)
		if end == len(line) || !isIdent(line[end]) {
			return Match{Keyword: k, Start: start, End: end}, true
		}
		off = end
	}
	return Match{}, false
}

// Count returns how many times k occurs in line, with the same rule as Find.
func Count(line string, k Keyword) int {
	n := 0
	for off := 0; off < len(line); {
		m, ok := Find(line[off:], k)
		if !ok {
			break
		}
		n++
		off += m.End
	}
	return n
}

// FindFirst returns the match of the first keyword in kws that occurs in
// line. kws is a priority order, not a position order.
func FindFirst(line string, kws ...Keyword) (Match, bool) {
	for _, k := range kws {
		if m, ok := Find(line, k); ok {
			return m, true
		}
	}
	return Match{}, false
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isBlankString(s string) bool {
	return strings.TrimLeft(s, " \t") == ""
}
