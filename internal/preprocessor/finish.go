package preprocessor

import (
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/csl/internal/constants"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/sourcemap"
)

// finish runs the passes that need the whole flattened output: constants
// splicing, then binding index assignment.
func (e *expansion) finish(root string) (*Result, error) {
	if e.pending.Len() > 0 {
		if err := e.splice(); err != nil {
			return nil, diagnostic.At(err, root, 0, "")
		}
	}
	bindings, err := e.assign()
	if err != nil {
		return nil, err
	}

	e.stats.OutputLines = len(e.out)
	e.stats.Placeholders = e.bindings.Placeholders()

	var sb strings.Builder
	for _, l := range e.out {
		sb.WriteString(l.text)
		sb.WriteByte('\n')
	}

	result := &Result{
		Code:     sb.String(),
		Dialect:  e.opts.Dialect,
		Files:    e.files,
		Bindings: bindings,
		Warnings: e.warnings.Warnings(),
		Stats:    e.stats,
	}
	if e.opts.GenerateSourceMap {
		result.SourceMap = e.sourceMap()
	}

	e.log.Debug("expanded", "root", root, "dialect", e.opts.Dialect.String(),
		"files", e.stats.Files, "lines", e.stats.OutputLines, "placeholders", e.stats.Placeholders)
	return result, nil
}

// splice inserts the pending constants before the closing brace of the
// constants structure. A brace sharing its line with other text splits the
// line so the fragments land between the two halves.
func (e *expansion) splice() error {
	texts := make([]string, len(e.out))
	for i, l := range e.out {
		texts[i] = l.text
	}
	anchor, err := constants.FindAnchor(texts, e.opts.Dialect)
	if err != nil {
		return err
	}

	target := e.out[anchor.Line]
	var insert []outLine
	for _, frag := range e.pending.Fragments() {
		fi, _ := e.fileIndex(frag.Path)
		for _, l := range frag.Lines {
			insert = append(insert, outLine{text: l.Text, file: fi, line: l.Line})
			e.stats.Constants++
		}
	}

	head := target.text[:anchor.Column]
	tail := target.text[anchor.Column:]
	var out []outLine
	out = append(out, e.out[:anchor.Line]...)
	if strings.TrimSpace(head) != "" {
		out = append(out, outLine{text: strings.TrimRight(head, " \t"), file: target.file, line: target.line})
		out = append(out, insert...)
		out = append(out, outLine{text: tail, file: target.file, line: target.line})
	} else {
		out = append(out, insert...)
		out = append(out, target)
	}
	out = append(out, e.out[anchor.Line+1:]...)
	e.out = out

	e.log.Debug("spliced constants", "fragments", e.pending.Len(), "lines", len(insert),
		"path", e.files[target.file], "line", target.line)
	return nil
}

func (e *expansion) fileIndex(path string) (int, bool) {
	for i, p := range e.files {
		if p == path {
			return i, true
		}
	}
	return 0, false
}

// assign replaces placeholders in textual order and reports every binding
// of the output. Lines without placeholders are left untouched.
func (e *expansion) assign() ([]Binding, error) {
	alloc := e.bindings.Allocator()
	var bindings []Binding
	for i, l := range e.out {
		text, found, err := alloc.Assign(l.text)
		if err != nil {
			return nil, diagnostic.At(err, e.files[l.file], l.line, l.text)
		}
		e.out[i].text = text
		for _, a := range found {
			b := Binding{
				Space:    a.Space,
				Index:    a.Index,
				Assigned: a.Assigned,
				Path:     e.files[l.file],
				Line:     l.line,
			}
			if a.Type != 0 {
				b.Register = string(a.Type)
			}
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

// sourceMap maps every output line to the line it came from.
func (e *expansion) sourceMap() *sourcemap.SourceMap {
	g := sourcemap.NewGenerator()
	g.SetFile(e.opts.SourceMapOptions.File)
	g.IncludeSourceContent(e.opts.SourceMapOptions.IncludeSource)

	sources := make([]int, len(e.files))
	for i, path := range e.files {
		sources[i] = g.AddSource(filepath.ToSlash(path), e.contents[i])
	}
	for i, l := range e.out {
		g.AddMapping(i, 0, sources[l.file], l.line-1, 0)
	}
	return g.Generate()
}
