// Package api provides the public API for the combined shader preprocessor.
//
// This package is intended for programmatic use of the preprocessor.
// For CLI usage, see cmd/csl.
package api

import (
	"errors"
	"log/slog"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/fsys"
	"github.com/HugoDaniel/csl/internal/preprocessor"
)

// Error is the error type returned by every expansion failure. Use
// errors.As to retrieve it and errors.Is with a Kind to classify it.
type Error = diagnostic.Error

// Kind classifies an Error.
type Kind = diagnostic.Kind

// ExpandOptions controls expansion behavior.
type ExpandOptions struct {
	// Dialect is the output dialect: "hlsl" or "glsl".
	Dialect string `json:"dialect"`

	// IncludeDirs are searched, in order, after the directory of the
	// including file.
	IncludeDirs []string `json:"includeDirs,omitempty"`

	// BaseBindingIndex is the first index handed out to GLSL placeholders.
	BaseBindingIndex uint32 `json:"baseBindingIndex,omitempty"`

	// StrictBindings fails the expansion when hardcoded and placeholder
	// indices are mixed in the same register type and space. When false
	// (default) the mix is reported as a warning.
	StrictBindings bool `json:"strictBindings,omitempty"`

	// RewriteMul turns mul(a, b) in shared code into (a * b) for GLSL output.
	RewriteMul bool `json:"rewriteMul,omitempty"`

	// MaxIncludeDepth limits include nesting. Zero means the default (64).
	MaxIncludeDepth int `json:"maxIncludeDepth,omitempty"`

	// SourceMap enables source map generation.
	// If true, the result will include a source map.
	SourceMap bool `json:"sourceMap,omitempty"`

	// SourceMapOptions configures source map generation.
	// Only used when SourceMap is true.
	SourceMapOptions SourceMapOptions `json:"sourceMapOptions"`

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger `json:"-"`
}

// SourceMapOptions configures source map generation.
type SourceMapOptions struct {
	// File is the name of the generated file (for the "file" field in the source map).
	File string `json:"file,omitempty"`

	// IncludeSource embeds every visited file in "sourcesContent".
	// This makes the source map self-contained but increases its size.
	IncludeSource bool `json:"includeSource,omitempty"`
}

// ExpandResult contains the expansion output.
type ExpandResult struct {
	// Code is the expanded source in the requested dialect.
	Code string `json:"code"`

	// Dialect is "hlsl" or "glsl".
	Dialect string `json:"dialect"`

	// Files lists every file read, root first, in first-visit order.
	Files []string `json:"files"`

	// Bindings lists every binding declared in Code, in textual order.
	Bindings []BindingInfo `json:"bindings"`

	// Warnings contains non-fatal findings, formatted as
	// "path:line: warning: message".
	Warnings []string `json:"warnings,omitempty"`

	// Stats holds counters about the expansion.
	Stats preprocessor.Stats `json:"stats"`

	// SourceMap is the generated source map as a JSON string.
	// Empty if source map generation was not requested.
	SourceMap string `json:"sourceMap,omitempty"`

	// SourceMapDataURI is the source map as a data URI for inline embedding.
	// Empty if source map generation was not requested.
	SourceMapDataURI string `json:"sourceMapDataURI,omitempty"`
}

// BindingInfo describes one binding of the expanded output.
type BindingInfo struct {
	// Register is the HLSL register type: "t", "s", "u" or "b".
	// Empty for GLSL.
	Register string `json:"register,omitempty"`

	// Space is the HLSL register space (always 0 for GLSL).
	Space uint32 `json:"space"`

	// Index is the binding or register index.
	Index uint32 `json:"index"`

	// Assigned is true when Index replaced a "?" placeholder.
	Assigned bool `json:"assigned"`

	// Path and Line locate the declaration in its source file.
	Path string `json:"path"`
	Line int    `json:"line"`
}

// ErrorInfo is the JSON form of an expansion error.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message"`
}

// Expand expands the combined shader at rootPath and everything it includes.
func Expand(rootPath string, opts ExpandOptions) (ExpandResult, error) {
	return expand(rootPath, opts, nil)
}

// ExpandHLSL expands rootPath for HLSL with default options and returns the code.
func ExpandHLSL(rootPath string, includeDirs ...string) (string, error) {
	res, err := Expand(rootPath, ExpandOptions{Dialect: "hlsl", IncludeDirs: includeDirs})
	return res.Code, err
}

// ExpandGLSL expands rootPath for GLSL with default options and returns the code.
func ExpandGLSL(rootPath string, includeDirs ...string) (string, error) {
	res, err := Expand(rootPath, ExpandOptions{Dialect: "glsl", IncludeDirs: includeDirs})
	return res.Code, err
}

// ExpandFiles expands rootPath from an in-memory file tree instead of the
// filesystem. Keys of files are slash-separated paths.
func ExpandFiles(files map[string]string, rootPath string, opts ExpandOptions) (ExpandResult, error) {
	memfs, err := fsys.NewMemory(files)
	if err != nil {
		return ExpandResult{}, err
	}
	return expand(rootPath, opts, memfs)
}

func expand(rootPath string, opts ExpandOptions, files fsys.FS) (ExpandResult, error) {
	d, err := dialect.Parse(opts.Dialect)
	if err != nil {
		return ExpandResult{}, err
	}

	p := preprocessor.New(preprocessor.Options{
		Dialect:           d,
		IncludeDirs:       opts.IncludeDirs,
		BaseBindingIndex:  opts.BaseBindingIndex,
		StrictBindings:    opts.StrictBindings,
		RewriteMul:        opts.RewriteMul,
		MaxIncludeDepth:   opts.MaxIncludeDepth,
		FS:                files,
		Logger:            opts.Logger,
		GenerateSourceMap: opts.SourceMap,
		SourceMapOptions: preprocessor.SourceMapOptions{
			File:          opts.SourceMapOptions.File,
			IncludeSource: opts.SourceMapOptions.IncludeSource,
		},
	})

	result, err := p.Expand(rootPath)
	if err != nil {
		return ExpandResult{}, err
	}
	return convertResult(result), nil
}

// convertResult converts the internal result to API types.
func convertResult(result *preprocessor.Result) ExpandResult {
	apiResult := ExpandResult{
		Code:     result.Code,
		Dialect:  result.Dialect.String(),
		Files:    result.Files,
		Bindings: make([]BindingInfo, len(result.Bindings)),
		Stats:    result.Stats,
	}
	for i, b := range result.Bindings {
		apiResult.Bindings[i] = BindingInfo(b)
	}
	for i := range result.Warnings {
		apiResult.Warnings = append(apiResult.Warnings, result.Warnings[i].String())
	}

	// Include source map if generated
	if result.SourceMap != nil {
		apiResult.SourceMap = result.SourceMap.ToJSON()
		apiResult.SourceMapDataURI = result.SourceMap.ToDataURI()
	}

	return apiResult
}

// DescribeError converts err to its JSON form. Errors that are not
// expansion errors (bad options, for instance) only carry a message.
func DescribeError(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &ErrorInfo{Message: err.Error()}
	}
	return &ErrorInfo{
		Kind:    e.Kind.String(),
		Code:    e.Kind.Code(),
		Path:    e.Path,
		Line:    e.Line,
		Column:  e.Column,
		Text:    e.Text,
		Message: e.Error(),
	}
}
