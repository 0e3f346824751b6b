// Package preprocessor provides the main expansion API.
//
// It drives the line scanner over a root file, follows includes, routes
// dialect-tagged code, and finishes with constants splicing and binding
// index assignment to produce one translation unit for the target dialect.
package preprocessor

import (
	"errors"
	"io"
	"log/slog"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/fsys"
	"github.com/HugoDaniel/csl/internal/sourcemap"
)

// DefaultMaxIncludeDepth bounds include nesting when Options leaves it zero.
const DefaultMaxIncludeDepth = 64

// ErrDialect is returned when Options.Dialect is not HLSL or GLSL.
var ErrDialect = errors.New("preprocessor: target dialect must be hlsl or glsl")

// Options controls expansion behavior.
type Options struct {
	// Dialect is the output dialect.
	Dialect dialect.Dialect

	// IncludeDirs are searched, in order, after the including file's directory
	IncludeDirs []string

	// BaseBindingIndex is the first index handed out to GLSL placeholders
	BaseBindingIndex uint32

	// StrictBindings rejects mixing hardcoded and placeholder indices in the
	// same register type and space instead of warning about it.
	StrictBindings bool

	// RewriteMul turns mul(a, b) in shared code into (a * b) for GLSL output
	RewriteMul bool

	// MaxIncludeDepth limits include nesting (DefaultMaxIncludeDepth if zero)
	MaxIncludeDepth int

	// FS is the file tree to read from (the OS filesystem if nil)
	FS fsys.FS

	// Logger receives debug output (discarded if nil)
	Logger *slog.Logger

	// GenerateSourceMap enables source map generation
	GenerateSourceMap bool

	// SourceMapOptions configures source map output
	SourceMapOptions SourceMapOptions
}

// SourceMapOptions configures source map generation.
type SourceMapOptions struct {
	// File is the name of the generated file (for the "file" field)
	File string

	// IncludeSource embeds every visited file in "sourcesContent"
	IncludeSource bool
}

// Result contains the expansion output.
type Result struct {
	// Code is the expanded source, one newline after every line
	Code string

	// Dialect is the dialect Code is written in
	Dialect dialect.Dialect

	// Files lists every visited file in first-visit order, root first
	Files []string

	// Bindings lists every binding declared in Code, in textual order
	Bindings []Binding

	// Warnings are non-fatal findings
	Warnings []diagnostic.Diagnostic

	// Statistics about the expansion
	Stats Stats

	// SourceMap is the generated source map (nil if not requested)
	SourceMap *sourcemap.SourceMap
}

// Binding is one resource binding of the expanded output.
type Binding struct {
	// Register is the HLSL register type ("t", "s", "u" or "b"), empty for GLSL
	Register string `json:"register,omitempty"`
	Space    uint32 `json:"space"`
	Index    uint32 `json:"index"`
	// Assigned is set when the index replaced a placeholder
	Assigned bool   `json:"assigned"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
}

// Stats provides expansion statistics.
type Stats struct {
	Files        int `json:"files"`
	Includes     int `json:"includes"`
	InputLines   int `json:"inputLines"`
	OutputLines  int `json:"outputLines"`
	Placeholders int `json:"placeholders"`
	Constants    int `json:"constants"` // spliced fragment lines
}

// Preprocessor expands combined shader sources.
type Preprocessor struct {
	options Options
}

// New creates a new preprocessor with the given options.
func New(options Options) *Preprocessor {
	if options.FS == nil {
		options.FS = fsys.OS{}
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if options.MaxIncludeDepth <= 0 {
		options.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	return &Preprocessor{options: options}
}

// Options returns the effective options.
func (p *Preprocessor) Options() Options {
	return p.options
}

// Expand expands the file at root and everything it includes. Either the
// whole tree expands or an error is returned; there is no partial output.
// Errors are *diagnostic.Error values naming the file in which the fault
// was detected.
func (p *Preprocessor) Expand(root string) (*Result, error) {
	if !p.options.Dialect.Valid() {
		return nil, ErrDialect
	}
	e := newExpansion(&p.options)
	if err := e.file(root); err != nil {
		return nil, err
	}
	return e.finish(root)
}
