// Package include parses #include directives and resolves the quoted path
// against the including file and the configured include directories.
package include

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/fsys"
	"github.com/HugoDaniel/csl/internal/scanner"
)

// Parse recognizes an include directive. ok is false when line is not one,
// that is when #include is not its first non-blank token. A malformed
// directive returns an error without file context.
//
// The accepted form is
//
//	#include "relative/path.glsl"
//
// with exactly one space between the keyword and the opening quote.
func Parse(line string) (rel string, ok bool, err error) {
	m, found := scanner.Find(line, scanner.Include)
	if !found || strings.TrimLeft(line[:m.Start], " \t") != "" {
		return "", false, nil
	}

	rest := line[m.End:]
	switch {
	case strings.TrimSpace(rest) == "":
		return "", true, diagnostic.New(diagnostic.NothingAfterKeyword,
			"expected a path after %q", scanner.Include).WithText(line, m.End+1)
	case rest[0] != ' ':
		return "", true, diagnostic.New(diagnostic.MissingSpace,
			"expected a space after %q", scanner.Include).WithText(line, m.End+1)
	case len(rest) < 2 || rest[1] != '"':
		return "", true, diagnostic.New(diagnostic.MissingQuotes,
			"expected a quoted path after %q", scanner.Include).WithText(line, m.End+2)
	}

	quoted := rest[2:]
	end := strings.IndexByte(quoted, '"')
	if end < 0 {
		return "", true, diagnostic.New(diagnostic.UnterminatedQuote,
			"missing closing quote in include path").WithText(line, m.End+2)
	}
	return quoted[:end], true, nil
}

// Resolver locates included files.
type Resolver struct {
	fs   fsys.FS
	dirs []string
}

// NewResolver creates a resolver that searches dirs, in order, after the
// directory of the including file.
func NewResolver(files fsys.FS, dirs []string) *Resolver {
	return &Resolver{fs: files, dirs: dirs}
}

// Dirs returns the additional search directories.
func (r *Resolver) Dirs() []string {
	return r.dirs
}

// Resolve returns the path of rel as included from the file from. The
// including file's directory takes precedence; the first include directory
// holding a regular file named rel wins otherwise.
func (r *Resolver) Resolve(from, rel string) (string, error) {
	candidates := make([]string, 0, len(r.dirs)+1)
	candidates = append(candidates, filepath.Join(filepath.Dir(from), rel))
	for _, dir := range r.dirs {
		candidates = append(candidates, filepath.Join(dir, rel))
	}

	for _, c := range candidates {
		info, err := r.fs.Stat(c)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", diagnostic.Wrap(diagnostic.OpenFailed, err, "cannot access %q", c)
		}
		if info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", diagnostic.New(diagnostic.IncludeNotFound,
		"included file %q not found relative to %q or in %d include directories", rel, filepath.Dir(from), len(r.dirs))
}
