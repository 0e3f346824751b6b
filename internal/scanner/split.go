package scanner

import (
	"sort"

	"github.com/HugoDaniel/csl/internal/diagnostic"
)

// Span is a piece of a line together with the keyword that tags it. Text
// before the first keyword is tagged None and belongs to both dialects.
type Span struct {
	Keyword Keyword
	Text    string
}

// IsMixed reports whether line carries more than one dialect keyword,
// which makes it a mixed line for Split. A keyword repeated on its own
// counts too, so Split can reject it.
func IsMixed(line string) bool {
	n := 0
	for _, k := range Dialects {
		n += Count(line, k)
	}
	return n > 1
}

// Split partitions a mixed line such as
//
//	#hlsl float4 c; #glsl vec4 c; #both c = x;
//
// into one span per keyword. Keywords may come in any order. A span starts
// one character past its keyword and runs to the next keyword or the end of
// the line. The returned error has no file context.
func Split(line string) ([]Span, error) {
	var matches []Match
	for _, k := range Dialects {
		switch n := Count(line, k); {
		case n > 1:
			m, _ := Find(line, k)
			return nil, diagnostic.New(diagnostic.RepeatedKeyword,
				"keyword %q appears %d times on the same line", k, n).WithText(line, m.Start+1)
		case n == 1:
			m, _ := Find(line, k)
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })

	var spans []Span
	if len(matches) > 0 {
		if prefix := line[:matches[0].Start]; !isBlankString(prefix) {
			spans = append(spans, Span{Keyword: None, Text: prefix})
		}
	}
	for i, m := range matches {
		end := len(line)
		if i+1 < len(matches) {
			end = matches[i+1].Start
		}
		start := m.End
		if start < end && isBlank(line[start]) {
			start++
		}
		text := line[start:end]
		if isBlankString(text) {
			return nil, diagnostic.New(diagnostic.EmptySection,
				"expected code after keyword %q", m.Keyword).WithText(line, m.Start+1)
		}
		spans = append(spans, Span{Keyword: m.Keyword, Text: text})
	}
	return spans, nil
}
