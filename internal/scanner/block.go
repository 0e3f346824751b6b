package scanner

import (
	"strings"

	"github.com/HugoDaniel/csl/internal/diagnostic"
)

// Shape is the layout of a directive body.
type Shape uint8

const (
	Inline Shape = iota
	InlineBlock
	SameLineBlock
	NextLineBlock
)

func (s Shape) String() string {
	switch s {
	case Inline:
		return "inline"
	case InlineBlock:
		return "inline block"
	case SameLineBlock:
		return "same-line block"
	case NextLineBlock:
		return "next-line block"
	default:
		return "unknown"
	}
}

// ReadBody reads the body of the directive m found on line and hands each
// body line to fn. Block bodies consume further lines from src; the closing
// brace line is consumed but only the text before the brace is delivered.
// An error returned by fn stops reading and is returned unchanged.
func ReadBody(src *Source, line string, m Match, fn func(text string) error) (Shape, error) {
	rest := line[m.End:]
	i := 0
	for i < len(rest) && isBlank(rest[i]) {
		i++
	}

	switch {
	case i == len(rest):
		next, ok := src.Next()
		if !ok {
			return NextLineBlock, src.errorf(diagnostic.UnexpectedEOF, src.Line(), line, m.Start+1,
				"unexpected end of file while processing keyword %q", m.Keyword)
		}
		trimmed := strings.TrimLeft(next, " \t")
		if !strings.HasPrefix(trimmed, "{") {
			return NextLineBlock, src.errorf(diagnostic.ExpectedBlockStart, src.Line(), next, len(next)-len(trimmed)+1,
				"expected to find a curly bracket on line %q while processing keyword %q", next, m.Keyword)
		}
		return NextLineBlock, readBlock(src, m, trimmed[1:], fn)

	case rest[i] == '{':
		after := rest[i+1:]
		if end := closingBrace(after); end >= 0 {
			if body := strings.TrimSpace(after[:end]); body != "" {
				return InlineBlock, fn(body)
			}
			return InlineBlock, nil
		}
		return SameLineBlock, readBlock(src, m, after, fn)

	default:
		body := rest
		if isBlank(body[0]) {
			body = body[1:]
		}
		return Inline, fn(body)
	}
}

// readBlock consumes lines until the brace that closes the block opened on
// the keyword line. first is the text following the opening brace.
func readBlock(src *Source, m Match, first string, fn func(string) error) error {
	openedAt := src.Line()
	depth := 0

	// feed tracks nesting over text and reports whether the block closed in it.
	feed := func(text string, trim bool) (bool, error) {
		for i := 0; i < len(text); i++ {
			switch text[i] {
			case '{':
				depth++
			case '}':
				if depth == 0 {
					if head := strings.TrimRight(text[:i], " \t"); !isBlankString(head) {
						if trim {
							head = strings.TrimSpace(head)
						}
						return true, fn(head)
					}
					return true, nil
				}
				depth--
			}
		}
		if trim {
			text = strings.TrimSpace(text)
			if text == "" {
				return false, nil
			}
		}
		return false, fn(text)
	}

	if done, err := feed(first, true); done || err != nil {
		return err
	}
	for {
		text, ok := src.Next()
		if !ok {
			return src.errorf(diagnostic.UnterminatedBlock, openedAt, "", 0,
				"reached unexpected end of file while processing keyword %q", m.Keyword)
		}
		if done, err := feed(text, false); done || err != nil {
			return err
		}
	}
}

// closingBrace returns the index of the brace closing a block that is
// already open at the start of s, or -1.
func closingBrace(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func (s *Source) errorf(kind diagnostic.Kind, line int, text string, column int, format string, args ...any) *diagnostic.Error {
	e := diagnostic.New(kind, format, args...).WithText(text, column)
	e.Path = s.path
	e.Line = line
	return e
}
