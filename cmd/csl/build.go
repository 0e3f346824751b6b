package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/HugoDaniel/csl/internal/config"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/preprocessor"
	"github.com/HugoDaniel/csl/pkg/api"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
)

// job is one expansion of one input into one dialect.
type job struct {
	input   string
	dialect dialect.Dialect
	output  string // empty for stdout
}

// plan pairs every input with every dialect and picks output paths. A
// single expansion goes to output (or stdout); several expansions go to
// <name>.<dialect> inside output, or next to each input when output is empty.
func plan(inputs []string, dialects []dialect.Dialect, output string) ([]job, error) {
	single := len(inputs) == 1 && len(dialects) == 1
	if single {
		out := output
		if out != "" && isDir(out) {
			out = filepath.Join(out, outputName(inputs[0], dialects[0]))
		}
		return []job{{input: inputs[0], dialect: dialects[0], output: out}}, nil
	}

	var jobs []job
	seen := make(map[string]string)
	for _, in := range inputs {
		for _, d := range dialects {
			dir := output
			if dir == "" {
				dir = filepath.Dir(in)
			}
			out := filepath.Join(dir, outputName(in, d))
			if prev, ok := seen[out]; ok {
				return nil, fmt.Errorf("inputs %s and %s both write %s", prev, in, out)
			}
			seen[out] = in
			jobs = append(jobs, job{input: in, dialect: d, output: out})
		}
	}
	return jobs, nil
}

// outputName replaces the input's extension with the dialect's.
func outputName(input string, d dialect.Dialect) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + d.Ext()
}

func isDir(path string) bool {
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// builder runs the planned jobs and reports their outcome.
type builder struct {
	settings config.Settings
	jobs     []job
	json     bool
	stdout   io.Writer
	out      *termenv.Output
	log      *slog.Logger
}

// outcome is the result of one job.
type outcome struct {
	result *preprocessor.Result
	err    error
}

// report is the JSON form of an outcome.
type report struct {
	Input    string                  `json:"input"`
	Output   string                  `json:"output,omitempty"`
	Dialect  dialect.Dialect         `json:"dialect"`
	Code     string                  `json:"code,omitempty"`
	Files    []string                `json:"files,omitempty"`
	Bindings []preprocessor.Binding  `json:"bindings,omitempty"`
	Warnings []diagnostic.Diagnostic `json:"warnings,omitempty"`
	Stats    *preprocessor.Stats     `json:"stats,omitempty"`
	Error    *api.ErrorInfo          `json:"error,omitempty"`
}

// build runs every job and returns the files the outputs depend on.
// Expansion failures are printed and reported as errReported.
func (b *builder) build(ctx context.Context) ([]string, error) {
	outcomes := make([]outcome, len(b.jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range b.jobs {
		i, j := i, j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := b.settings.Options
			opts.Dialect = j.dialect
			if j.output != "" {
				opts.SourceMapOptions.File = filepath.Base(j.output)
			}
			result, err := preprocessor.New(opts).Expand(j.input)
			outcomes[i] = outcome{result: result, err: err}
			if err != nil || j.output == "" {
				return nil
			}
			return b.write(j, result)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed int
	var reports []report
	for i, j := range b.jobs {
		o := outcomes[i]
		if o.err != nil {
			failed++
			b.printError(o.err)
		} else {
			b.printWarnings(o.result.Warnings)
		}
		if b.json {
			reports = append(reports, newReport(j, o))
			continue
		}
		if o.err == nil && j.output == "" {
			if _, err := io.WriteString(b.stdout, b.code(o.result, true)); err != nil {
				return nil, fmt.Errorf("writing output: %w", err)
			}
		}
	}

	if b.json {
		enc := json.NewEncoder(b.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return nil, fmt.Errorf("writing report: %w", err)
		}
	}

	files := dependencies(b.jobs, outcomes)
	if failed > 0 {
		return files, errReported
	}
	return files, nil
}

// write stores the expanded code and, if requested, its source map.
func (b *builder) write(j job, result *preprocessor.Result) error {
	if err := os.MkdirAll(filepath.Dir(j.output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(j.output, []byte(b.code(result, false)), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if result.SourceMap != nil {
		if err := os.WriteFile(j.output+".map", []byte(result.SourceMap.ToJSON()), 0o644); err != nil {
			return fmt.Errorf("writing source map: %w", err)
		}
	}
	b.log.Debug("wrote output", "input", j.input, "output", j.output, "dialect", j.dialect.String(),
		"lines", result.Stats.OutputLines)
	return nil
}

// code returns the output text with a trailing source map comment when a
// source map was generated. Stdout output embeds the map inline.
func (b *builder) code(result *preprocessor.Result, inline bool) string {
	if result.SourceMap == nil {
		return result.Code
	}
	return result.Code + result.SourceMap.ToComment(inline) + "\n"
}

func (b *builder) printError(err error) {
	text := diagnostic.Format(err)
	head, rest, _ := strings.Cut(text, "\n")
	fmt.Fprintln(b.out, b.out.String(head).Foreground(b.out.Color("1")).Bold())
	if rest != "" {
		fmt.Fprint(b.out, rest)
	}
}

func (b *builder) printWarnings(warnings []diagnostic.Diagnostic) {
	for i := range warnings {
		fmt.Fprintln(b.out, b.out.String(warnings[i].String()).Foreground(b.out.Color("3")))
	}
}

func newReport(j job, o outcome) report {
	r := report{Input: j.input, Output: j.output, Dialect: j.dialect}
	if o.err != nil {
		r.Error = api.DescribeError(o.err)
		return r
	}
	if j.output == "" {
		r.Code = o.result.Code
	}
	r.Files = o.result.Files
	r.Bindings = o.result.Bindings
	r.Warnings = o.result.Warnings
	r.Stats = &o.result.Stats
	return r
}

// dependencies lists every file read by the jobs, plus the inputs and the
// files named by failures so that a broken tree is still watched.
func dependencies(jobs []job, outcomes []outcome) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if path == "" {
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for i, j := range jobs {
		add(j.input)
		o := outcomes[i]
		if o.result != nil {
			for _, f := range o.result.Files {
				add(f)
			}
		}
		var e *diagnostic.Error
		if errors.As(o.err, &e) {
			add(e.Path)
		}
	}
	return files
}
