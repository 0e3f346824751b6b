// Package diagnostic provides error reporting and diagnostic messages for the
// combined shader language preprocessor.
//
// Every failure is a *Error carrying a Kind, the file in which the fault was
// detected and, when known, the line and the offending text. Kinds double as
// sentinel errors, so callers test for them with errors.Is:
//
//	if errors.Is(err, diagnostic.IncludeNotFound) { ... }
//
// Non-fatal findings are collected as warnings in a List.
package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	// SeverityError aborts the expansion.
	SeverityError Severity = iota
	// SeverityWarning is a non-blocking issue.
	SeverityWarning
	// SeverityNote provides additional context for another diagnostic.
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Category groups kinds the way callers usually branch on them.
type Category uint8

const (
	FileAccess Category = iota
	DirectiveSyntax
	IncludeSyntax
	BindingSyntax
	Constants
	Numeric
	Rewrite
)

func (c Category) String() string {
	switch c {
	case FileAccess:
		return "file access"
	case DirectiveSyntax:
		return "directive syntax"
	case IncludeSyntax:
		return "include syntax"
	case BindingSyntax:
		return "binding syntax"
	case Constants:
		return "constants"
	case Numeric:
		return "numeric conversion"
	case Rewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

// Kind identifies one specific failure. A Kind is itself an error so that it
// can be used as the target of errors.Is.
type Kind uint8

const (
	// File access (E00xx)
	FileNotFound Kind = iota + 1
	NotAFile
	NoParentPath
	OpenFailed

	// Directive syntax (E01xx)
	UnexpectedEOF
	UnterminatedBlock
	ExpectedBlockStart
	RepeatedKeyword
	EmptySection

	// Include syntax (E02xx)
	NothingAfterKeyword
	MissingSpace
	MissingQuotes
	UnterminatedQuote
	IncludeNotFound
	CircularInclude
	IncludeDepthExceeded

	// Binding syntax (E03xx)
	MissingEquals
	MissingIndex
	UnsupportedRegisterType
	UnterminatedRegister
	MissingSpaceIndex
	UnsupportedSpacePlaceholder
	MixedBindingScheme

	// Constants (E04xx)
	ConstantsAnchorMissing

	// Numeric (E05xx)
	NumericConversion

	// Rewrite (E06xx)
	UnsupportedConstruct
)

type kindInfo struct {
	name     string
	code     string
	category Category
}

var kinds = map[Kind]kindInfo{
	FileNotFound: {"FileNotFound", "E0001", FileAccess},
	NotAFile:     {"NotAFile", "E0002", FileAccess},
	NoParentPath: {"NoParentPath", "E0003", FileAccess},
	OpenFailed:   {"OpenFailed", "E0004", FileAccess},

	UnexpectedEOF:      {"UnexpectedEOF", "E0100", DirectiveSyntax},
	UnterminatedBlock:  {"UnterminatedBlock", "E0101", DirectiveSyntax},
	ExpectedBlockStart: {"ExpectedBlockStart", "E0102", DirectiveSyntax},
	RepeatedKeyword:    {"RepeatedKeyword", "E0103", DirectiveSyntax},
	EmptySection:       {"EmptySection", "E0104", DirectiveSyntax},

	NothingAfterKeyword:  {"NothingAfterKeyword", "E0200", IncludeSyntax},
	MissingSpace:         {"MissingSpace", "E0201", IncludeSyntax},
	MissingQuotes:        {"MissingQuotes", "E0202", IncludeSyntax},
	UnterminatedQuote:    {"UnterminatedQuote", "E0203", IncludeSyntax},
	IncludeNotFound:      {"IncludeNotFound", "E0204", IncludeSyntax},
	CircularInclude:      {"CircularInclude", "E0205", IncludeSyntax},
	IncludeDepthExceeded: {"IncludeDepthExceeded", "E0206", IncludeSyntax},

	MissingEquals:               {"MissingEquals", "E0300", BindingSyntax},
	MissingIndex:                {"MissingIndex", "E0301", BindingSyntax},
	UnsupportedRegisterType:     {"UnsupportedRegisterType", "E0302", BindingSyntax},
	UnterminatedRegister:        {"UnterminatedRegister", "E0303", BindingSyntax},
	MissingSpaceIndex:           {"MissingSpaceIndex", "E0304", BindingSyntax},
	UnsupportedSpacePlaceholder: {"UnsupportedSpacePlaceholder", "E0305", BindingSyntax},
	MixedBindingScheme:          {"MixedBindingScheme", "E0306", BindingSyntax},

	ConstantsAnchorMissing: {"ConstantsAnchorMissing", "E0400", Constants},
	NumericConversion:      {"NumericConversion", "E0500", Numeric},
	UnsupportedConstruct:   {"UnsupportedConstruct", "E0600", Rewrite},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Code returns the stable error code, e.g. "E0204".
func (k Kind) Code() string {
	return kinds[k].code
}

// Category returns the group the kind belongs to.
func (k Kind) Category() Category {
	return kinds[k].category
}

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error is a failure detected while expanding a source tree.
type Error struct {
	Kind    Kind
	Path    string // file in which the fault was detected
	Line    int    // 1-based line number (0 if unknown)
	Column  int    // 1-based byte column within Text (0 if unknown)
	Text    string // offending line, when there is one
	Message string

	err error // underlying cause, if any
}

// New creates an error of the given kind without file context.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.err = err
	return e
}

// Error returns "path:line: message", omitting the parts that are unknown.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is the same Kind as e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// WithText attaches the offending line and column, keeping any already set.
func (e *Error) WithText(text string, column int) *Error {
	if e.Text == "" {
		e.Text = text
		e.Column = column
	}
	return e
}

// At attaches file context to err. A *Error that already names a file is
// returned unchanged, which keeps the innermost location when errors
// propagate out of nested includes. Other errors are wrapped as OpenFailed.
func At(err error, path string, line int, text string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(OpenFailed, err, "unexpected failure")
	}
	if e.Path != "" {
		return e
	}
	e.Path = path
	if e.Line == 0 {
		e.Line = line
	}
	if e.Text == "" {
		e.Text = text
	}
	return e
}

// Diagnostic is a non-fatal message tied to a source location.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// String returns "path:line: severity: message".
func (d *Diagnostic) String() string {
	var sb strings.Builder
	if d.Path != "" {
		sb.WriteString(d.Path)
		if d.Line > 0 {
			fmt.Fprintf(&sb, ":%d", d.Line)
		}
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s: %s", d.Severity, d.Message)
	return sb.String()
}

// List collects diagnostics during an expansion.
type List struct {
	diagnostics []Diagnostic
}

// Add adds a diagnostic to the list.
func (l *List) Add(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
}

// AddWarning adds a warning at the given location.
func (l *List) AddWarning(kind Kind, path string, line int, format string, args ...any) {
	l.Add(Diagnostic{
		Severity: SeverityWarning,
		Code:     kind.Code(),
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
		Line:     line,
	})
}

// Diagnostics returns all collected diagnostics.
func (l *List) Diagnostics() []Diagnostic {
	return l.diagnostics
}

// Warnings returns only warning-level diagnostics.
func (l *List) Warnings() []Diagnostic {
	var warnings []Diagnostic
	for _, d := range l.diagnostics {
		if d.Severity == SeverityWarning {
			warnings = append(warnings, d)
		}
	}
	return warnings
}

// Count returns the total number of diagnostics.
func (l *List) Count() int {
	return len(l.diagnostics)
}

// Format renders err for humans. A *Error gets its code, location, the
// offending line and a caret under the reported column.
func Format(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("error: %v\n", err)
	}

	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&sb, ":%d", e.Column)
			}
		}
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s[%s]: %s", SeverityError, e.Kind.Code(), e.Message)
	if e.err != nil {
		fmt.Fprintf(&sb, ": %v", e.err)
	}
	sb.WriteByte('\n')

	if e.Text != "" {
		line := strings.TrimRight(e.Text, "\r")
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteByte('\n')
		if e.Column > 0 && e.Column <= len(line)+1 {
			sb.WriteString(strings.Repeat(" ", e.Column-1+4))
			sb.WriteString("^\n")
		}
	}
	return sb.String()
}
