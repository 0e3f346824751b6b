package preprocessor

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/csl/internal/binding"
	"github.com/HugoDaniel/csl/internal/constants"
	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/fsys"
	"github.com/HugoDaniel/csl/internal/include"
	"github.com/HugoDaniel/csl/internal/rewrite"
	"github.com/HugoDaniel/csl/internal/scanner"
)

// outLine is one line of output with the position it came from.
type outLine struct {
	text string
	file int // index into expansion.files
	line int // 1-based
}

// expansion is the state of one Expand call. It is shared by every file of
// the include tree.
type expansion struct {
	opts     *Options
	log      *slog.Logger
	resolver *include.Resolver
	bindings *binding.State
	pending  constants.Pending
	warnings diagnostic.List

	files    []string
	contents []string
	stack    []string // include chain, root first
	out      []outLine
	stats    Stats
}

func newExpansion(opts *Options) *expansion {
	return &expansion{
		opts:     opts,
		log:      opts.Logger,
		resolver: include.NewResolver(opts.FS, opts.IncludeDirs),
		bindings: binding.NewState(opts.Dialect, binding.Options{
			BaseIndex: opts.BaseBindingIndex,
			Strict:    opts.StrictBindings,
		}),
	}
}

// file expands one file into e.out.
func (e *expansion) file(path string) error {
	if err := e.check(path); err != nil {
		return err
	}
	text, err := fsys.ReadSource(e.opts.FS, path)
	if err != nil {
		return fileError(diagnostic.Wrap(diagnostic.OpenFailed, err, "can't open file"), path)
	}

	fi, seen := e.fileIndex(path)
	if !seen {
		fi = len(e.files)
		e.files = append(e.files, path)
		e.contents = append(e.contents, text)
		e.stats.Files++
	}
	e.stack = append(e.stack, filepath.Clean(path))
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	src := scanner.NewSource(path, text)
	e.stats.InputLines += src.Len()
	e.log.Debug("expanding file", "path", path, "lines", src.Len(), "depth", len(e.stack)-1)

	for {
		line, ok := src.Next()
		if !ok {
			return nil
		}
		if err := e.line(src, fi, line); err != nil {
			return diagnostic.At(err, path, src.Line(), line)
		}
	}
}

// check validates path before it is read.
func (e *expansion) check(path string) error {
	clean := filepath.Clean(path)
	if path == "" || filepath.Dir(clean) == clean {
		return fileError(diagnostic.New(diagnostic.NoParentPath, "no parent path"), path)
	}
	info, err := e.opts.FS.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fileError(diagnostic.New(diagnostic.FileNotFound, "file not found"), path)
	case err != nil:
		return fileError(diagnostic.Wrap(diagnostic.OpenFailed, err, "can't open file"), path)
	case info.IsDir():
		return fileError(diagnostic.New(diagnostic.NotAFile, "not a file"), path)
	}
	return nil
}

func fileError(err *diagnostic.Error, path string) error {
	err.Path = path
	return err
}

// line processes one line read from src. Directives may consume further
// lines from src.
func (e *expansion) line(src *scanner.Source, fi int, text string) error {
	for _, k := range scanner.Constants {
		if m, ok := scanner.Find(text, k); ok {
			return e.constants(src, text, m)
		}
	}

	if scanner.IsMixed(text) {
		spans, err := scanner.Split(text)
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, span := range spans {
			routed, ok, err := e.route(span.Keyword, span.Text)
			if err != nil {
				return err
			}
			if ok {
				sb.WriteString(routed)
			}
		}
		return e.emit(sb.String(), fi, src.Line())
	}

	if m, ok := scanner.FindFirst(text, scanner.HLSL, scanner.GLSL, scanner.Both); ok {
		return e.directive(src, fi, text, m)
	}

	rel, ok, err := include.Parse(text)
	if err != nil {
		return err
	}
	if ok {
		return e.include(src.Path(), rel)
	}

	routed, _, err := e.route(scanner.None, text)
	if err != nil {
		return err
	}
	return e.emit(routed, fi, src.Line())
}

// directive handles a line holding a single #hlsl, #glsl or #both keyword.
// Text before the keyword is shared code; it is joined to the first body
// line when that line comes from the keyword line and emitted on its own
// otherwise.
func (e *expansion) directive(src *scanner.Source, fi int, text string, m scanner.Match) error {
	keywordLine := src.Line()
	var prefix string
	if head := text[:m.Start]; strings.TrimLeft(head, " \t") != "" {
		routed, _, err := e.route(scanner.None, head)
		if err != nil {
			return err
		}
		prefix = routed
	}

	shape, err := scanner.ReadBody(src, text, m, func(body string) error {
		routed, ok, err := e.route(m.Keyword, body)
		if err != nil || !ok {
			return err
		}
		if prefix != "" {
			if src.Line() == keywordLine {
				routed = prefix + routed
			} else if err := e.emit(prefix, fi, keywordLine); err != nil {
				return err
			}
			prefix = ""
		}
		return e.emit(routed, fi, src.Line())
	})
	if err != nil {
		return err
	}
	e.log.Debug("directive", "keyword", m.Keyword.String(), "shape", shape.String(), "path", src.Path(), "line", keywordLine)
	if prefix != "" {
		return e.emit(prefix, fi, keywordLine)
	}
	return nil
}

// route decides whether text tagged with k belongs to the output and
// applies the rewrites for shared code.
func (e *expansion) route(k scanner.Keyword, text string) (string, bool, error) {
	shared := k == scanner.None || k == scanner.Both
	switch {
	case shared:
	case k == scanner.HLSL && e.opts.Dialect == dialect.HLSL:
		return text, true, nil
	case k == scanner.GLSL && e.opts.Dialect == dialect.GLSL:
		return text, true, nil
	default:
		return "", false, nil
	}

	if e.opts.Dialect == dialect.HLSL {
		return rewrite.GLSLToHLSL(text), true, nil
	}
	if e.opts.RewriteMul {
		out, err := rewrite.MulToOperator(text)
		return out, err == nil, err
	}
	return text, true, nil
}

// emit appends a line to the output and records its bindings.
func (e *expansion) emit(text string, fi, line int) error {
	warn := func(kind diagnostic.Kind, format string, args ...any) {
		e.warnings.AddWarning(kind, e.files[fi], line, format, args...)
		e.log.Warn("binding scheme", "path", e.files[fi], "line", line, "kind", kind.String())
	}
	if err := e.bindings.Record(text, warn); err != nil {
		return err
	}
	e.out = append(e.out, outLine{text: text, file: fi, line: line})
	return nil
}

// include expands the file named by an #include directive in place.
func (e *expansion) include(from, rel string) error {
	if len(e.stack) > e.opts.MaxIncludeDepth {
		return diagnostic.New(diagnostic.IncludeDepthExceeded,
			"include depth exceeds %d", e.opts.MaxIncludeDepth)
	}
	path, err := e.resolver.Resolve(from, rel)
	if err != nil {
		return err
	}

	clean := filepath.Clean(path)
	for i, p := range e.stack {
		if p == clean {
			chain := append(append([]string{}, e.stack[i:]...), clean)
			return diagnostic.New(diagnostic.CircularInclude,
				"circular include of %q: %s", rel, strings.Join(chain, " -> "))
		}
	}

	e.stats.Includes++
	e.log.Debug("include", "from", from, "path", rel, "resolved", path)
	return e.file(path)
}

// constants collects the body of an additional-constants directive. Bodies
// of kinds the target dialect does not take are read and dropped.
func (e *expansion) constants(src *scanner.Source, text string, m scanner.Match) error {
	accept := constants.Accepts(m.Keyword, e.opts.Dialect)
	frag := constants.Fragment{Kind: m.Keyword, Path: src.Path(), Line: src.Line()}

	_, err := scanner.ReadBody(src, text, m, func(body string) error {
		if !accept {
			return nil
		}
		if m.Keyword != scanner.RootConstants {
			var err error
			if body, _, err = e.route(scanner.Both, body); err != nil {
				return err
			}
		}
		if err := e.bindings.Record(body, nil); err != nil {
			return err
		}
		frag.Lines = append(frag.Lines, constants.Line{Text: body, Line: src.Line()})
		return nil
	})
	if err != nil {
		return err
	}
	if !accept {
		e.log.Debug("constants dropped", "keyword", m.Keyword.String(), "dialect", e.opts.Dialect.String())
		return nil
	}
	e.pending.Add(frag)
	return nil
}
