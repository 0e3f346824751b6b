// Package fsys abstracts the file access the preprocessor needs, so the same
// engine runs over the OS filesystem or an in-memory tree (tests, WebAssembly).
package fsys

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FS is the read-only view of a file tree used during expansion.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

// OS reads from the operating system's filesystem.
type OS struct{}

func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// Memory is an in-memory file tree backed by hackpadfs.
type Memory struct {
	fs *mem.FS
}

// NewMemory creates an in-memory tree holding the given files. Keys are
// slash-separated paths; a leading "/" is ignored.
func NewMemory(files map[string]string) (*Memory, error) {
	memfs, err := mem.NewFS()
	if err != nil {
		return nil, err
	}
	m := &Memory{fs: memfs}
	for name, content := range files {
		if err := m.WriteFile(name, content); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// WriteFile adds or replaces a file, creating parent directories.
func (m *Memory) WriteFile(name, content string) error {
	p := NormPath(name)
	if dir := path.Dir(p); dir != "." {
		if err := hackpadfs.MkdirAll(m.fs, dir, 0o755); err != nil {
			return err
		}
	}
	return hackpadfs.WriteFullFile(m.fs, p, []byte(content), 0o644)
}

func (m *Memory) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(m.fs, NormPath(name))
}

func (m *Memory) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(m.fs, NormPath(name))
}

// NormPath normalizes the given path by cleaning it and making it non-rooted,
// as all go fs paths must be non-rooted.
func NormPath(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// ReadSource reads a source file and returns its text. A UTF-8 byte order
// mark is dropped and UTF-16 files with a byte order mark are decoded; files
// without a BOM are returned byte for byte.
func ReadSource(fsys FS, name string) (string, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return "", err
	}
	return Decode(data)
}

// Decode applies the byte order mark handling of ReadSource to data.
func Decode(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
