// Package golden_tests provides test infrastructure for expansion tests
// driven by directories of combined shader sources and expected outputs.
//
// A case directory holds main.csl (plus anything it includes) and, per
// dialect, either expected.<dialect> with the expected output or a line in
// expected.err naming the expected failure:
//
//	[hlsl|glsl ]<Kind> <path>:<line>
//
// A line without a dialect applies to both. Options are set by annotations
// in main.csl:
//
//	// @test: name
//	// @include-dir: dir         (relative to the case directory)
//	// @base-binding: n
//	// @strict-bindings
//	// @rewrite-mul
//	// @max-include-depth: n
package golden_tests

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/preprocessor"
	"github.com/HugoDaniel/csl/internal/test"
)

// RootName is the file expanded in every case directory.
const RootName = "main.csl"

// TestCase represents a single expansion test case.
type TestCase struct {
	Name    string
	Dir     string
	Options preprocessor.Options

	// Expected output per dialect, read from expected.<dialect>
	Expected map[dialect.Dialect]string
	// Expected failure per dialect, read from expected.err
	Errors map[dialect.Dialect]ExpectedError
}

// ExpectedError describes an expected expansion failure.
type ExpectedError struct {
	Kind string // e.g. "IncludeNotFound"
	Path string // relative to the case directory
	Line int
}

func (e ExpectedError) String() string {
	return fmt.Sprintf("%s %s:%d", e.Kind, e.Path, e.Line)
}

// Annotation patterns for main.csl.
var (
	testNameRe   = regexp.MustCompile(`//\s*@test:\s*(.+)`)
	includeDirRe = regexp.MustCompile(`//\s*@include-dir:\s*(\S+)`)
	baseRe       = regexp.MustCompile(`//\s*@base-binding:\s*(\d+)`)
	depthRe      = regexp.MustCompile(`//\s*@max-include-depth:\s*(\d+)`)
	strictRe     = regexp.MustCompile(`//\s*@strict-bindings`)
	rewriteMulRe = regexp.MustCompile(`//\s*@rewrite-mul`)
	expectErrRe  = regexp.MustCompile(`^(?:(hlsl|glsl)\s+)?(\w+)\s+(\S+):(\d+)$`)
)

// ParseTestCase reads a case directory.
func ParseTestCase(dir string) (*TestCase, error) {
	content, err := os.ReadFile(filepath.Join(dir, RootName))
	if err != nil {
		return nil, err
	}

	tc := &TestCase{
		Name:     filepath.Base(dir),
		Dir:      dir,
		Expected: make(map[dialect.Dialect]string),
		Errors:   make(map[dialect.Dialect]ExpectedError),
	}

	// Parse annotations
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := scanner.Text()

		if match := testNameRe.FindStringSubmatch(line); match != nil {
			tc.Name = strings.TrimSpace(match[1])
		}
		if match := includeDirRe.FindStringSubmatch(line); match != nil {
			tc.Options.IncludeDirs = append(tc.Options.IncludeDirs, filepath.Join(dir, filepath.FromSlash(match[1])))
		}
		if match := baseRe.FindStringSubmatch(line); match != nil {
			n, err := strconv.ParseUint(match[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("@base-binding: %w", err)
			}
			tc.Options.BaseBindingIndex = uint32(n)
		}
		if match := depthRe.FindStringSubmatch(line); match != nil {
			tc.Options.MaxIncludeDepth, _ = strconv.Atoi(match[1])
		}
		if strictRe.MatchString(line) {
			tc.Options.StrictBindings = true
		}
		if rewriteMulRe.MatchString(line) {
			tc.Options.RewriteMul = true
		}
	}

	for _, d := range dialect.All {
		data, err := os.ReadFile(filepath.Join(dir, "expected"+d.Ext()))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tc.Expected[d] = string(data)
	}

	data, err := os.ReadFile(filepath.Join(dir, "expected.err"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := tc.parseErrors(string(data)); err != nil {
			return nil, err
		}
	}

	for _, d := range dialect.All {
		_, out := tc.Expected[d]
		_, fails := tc.Errors[d]
		if out == fails {
			return nil, fmt.Errorf("%s: need exactly one of expected%s and an expected.err entry for %s", dir, d.Ext(), d)
		}
	}
	return tc, nil
}

func (tc *TestCase) parseErrors(text string) error {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		match := expectErrRe.FindStringSubmatch(line)
		if match == nil {
			return fmt.Errorf("bad expected.err line %q", line)
		}
		n, _ := strconv.Atoi(match[4])
		expected := ExpectedError{Kind: match[2], Path: match[3], Line: n}
		if match[1] == "" {
			for _, d := range dialect.All {
				tc.Errors[d] = expected
			}
			continue
		}
		d, err := dialect.Parse(match[1])
		if err != nil {
			return err
		}
		tc.Errors[d] = expected
	}
	return nil
}

// RunTestCase expands the case for every dialect and checks the outcome.
func RunTestCase(t *testing.T, tc *TestCase) {
	t.Helper()
	for _, d := range dialect.All {
		t.Run(d.String(), func(t *testing.T) {
			opts := tc.Options
			opts.Dialect = d
			result, err := preprocessor.New(opts).Expand(filepath.Join(tc.Dir, RootName))

			if want, ok := tc.Errors[d]; ok {
				checkError(t, tc, err, want)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error:\n%s", diagnostic.Format(err))
			}

			want, err := normalize(tc, d)
			if err != nil {
				t.Fatalf("expanding expected%s: %v", d.Ext(), err)
			}
			test.AssertEqualWithDiff(t, result.Code, want)
		})
	}
}

// normalize pushes the expected output through the preprocessor, so that
// expected files only need to be equivalent, not byte-identical.
func normalize(tc *TestCase, d dialect.Dialect) (string, error) {
	result, err := preprocessor.New(preprocessor.Options{Dialect: d}).
		Expand(filepath.Join(tc.Dir, "expected"+d.Ext()))
	if err != nil {
		return "", err
	}
	return result.Code, nil
}

func checkError(t *testing.T, tc *TestCase, err error, want ExpectedError) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, expansion succeeded", want)
	}
	var e *diagnostic.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected error %s, got %v", want, err)
	}
	path := e.Path
	if rel, relErr := filepath.Rel(tc.Dir, e.Path); relErr == nil {
		path = filepath.ToSlash(rel)
	}
	got := ExpectedError{Kind: e.Kind.String(), Path: path, Line: e.Line}
	if got != want {
		t.Errorf("expected error %s, got %s\n%s", want, got, diagnostic.Format(err))
	}
}

// RunTestDir runs every case directory below dir.
func RunTestDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read test directory %s: %v", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		caseDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(caseDir, RootName)); err != nil {
			t.Run(entry.Name(), func(t *testing.T) {
				RunTestDir(t, caseDir)
			})
			continue
		}

		tc, err := ParseTestCase(caseDir)
		if err != nil {
			t.Errorf("failed to parse test case %s: %v", caseDir, err)
			continue
		}
		t.Run(entry.Name(), func(t *testing.T) {
			RunTestCase(t, tc)
		})
	}
}
