// Package scanner reads combined shader sources line by line, classifies
// directive keywords and extracts directive bodies.
//
// A directive body takes one of these shapes:
//
//	#hlsl CODE        // inline: rest of the line after one space
//
//	#hlsl{ CODE }     // inline block: braces closed on the same line
//
//	#hlsl{            // block opened on the keyword line
//	    CODE
//	}
//
//	#hlsl             // block opened on the next line
//	{
//	    CODE
//	}
package scanner

import "strings"

// Source iterates over the lines of one file.
type Source struct {
	path  string
	lines []string
	pos   int
}

// NewSource splits text into lines. CRLF and lone CR line endings are
// normalized and a final line terminator does not produce an empty line.
func NewSource(path, text string) *Source {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return &Source{path: path, lines: lines}
}

// Next returns the next line, or false at end of file.
func (s *Source) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	s.pos++
	return s.lines[s.pos-1], true
}

// Line returns the 1-based number of the line last returned by Next.
func (s *Source) Line() int {
	return s.pos
}

// Path returns the file the lines came from.
func (s *Source) Path() string {
	return s.path
}

// Len returns the number of lines in the file.
func (s *Source) Len() int {
	return len(s.lines)
}
