// Package config handles loading preprocessor configuration from files.
//
// Configuration can be written in TOML (csl.toml), YAML (csl.yaml, csl.yml)
// or JSON (csl.json, .cslrc). The config file is searched for in the
// directory of the input file and its parent directories.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/preprocessor"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration file structure.
// All fields are optional and will use default values if not specified.
type Config struct {
	// Dialect is "hlsl", "glsl" or "both"
	Dialect string `json:"dialect,omitempty" toml:"dialect,omitempty" yaml:"dialect,omitempty"`

	// IncludeDirs are searched after the including file's directory.
	// Relative entries are relative to the config file.
	IncludeDirs []string `json:"includeDirs,omitempty" toml:"includeDirs,omitempty" yaml:"includeDirs,omitempty"`

	// BaseBindingIndex is the first automatically assigned GLSL binding
	BaseBindingIndex *uint32 `json:"baseBindingIndex,omitempty" toml:"baseBindingIndex,omitempty" yaml:"baseBindingIndex,omitempty"`

	// StrictBindings rejects mixed hardcoded and placeholder indices
	StrictBindings *bool `json:"strictBindings,omitempty" toml:"strictBindings,omitempty" yaml:"strictBindings,omitempty"`

	// RewriteMul turns mul(a, b) into (a * b) in shared code for GLSL
	RewriteMul *bool `json:"rewriteMul,omitempty" toml:"rewriteMul,omitempty" yaml:"rewriteMul,omitempty"`

	// MaxIncludeDepth limits include nesting
	MaxIncludeDepth *int `json:"maxIncludeDepth,omitempty" toml:"maxIncludeDepth,omitempty" yaml:"maxIncludeDepth,omitempty"`

	// SourceMap writes a source map next to each output
	SourceMap *bool `json:"sourceMap,omitempty" toml:"sourceMap,omitempty" yaml:"sourceMap,omitempty"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"csl.toml",
	"csl.yaml",
	"csl.yml",
	"csl.json",
	".cslrc",
}

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path. The format is
// chosen by extension; anything that is not TOML or YAML is read as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	dirs, err := resolveDirs(filepath.Dir(path), cfg.IncludeDirs)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.IncludeDirs = dirs
	return &cfg, nil
}

// resolveDirs expands "~" and makes relative directories relative to base.
func resolveDirs(base string, dirs []string) ([]string, error) {
	var out []string
	for _, d := range dirs {
		if d == "" {
			continue
		}
		expanded, err := homedir.Expand(d)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(expanded) && base != "" {
			expanded = filepath.Join(base, expanded)
		}
		out = append(out, expanded)
	}
	return out, nil
}

// ParseDialects converts "hlsl", "glsl" or "both" to the dialects to expand.
func ParseDialects(s string) ([]dialect.Dialect, error) {
	if strings.EqualFold(strings.TrimSpace(s), "both") {
		return dialect.All, nil
	}
	d, err := dialect.Parse(s)
	if err != nil {
		return nil, err
	}
	return []dialect.Dialect{d}, nil
}

// MergeOptions holds the CLI side of the configuration.
// Nil pointers and empty strings mean "not specified on the command line".
type MergeOptions struct {
	Dialect          string
	IncludeDirs      []string
	BaseBindingIndex *uint32
	StrictBindings   *bool
	RewriteMul       *bool
	MaxIncludeDepth  *int
	SourceMap        *bool

	// IncludePath is a list of directories in the form of the
	// CSL_INCLUDE_PATH environment variable.
	IncludePath string
}

// Settings is the merged configuration.
type Settings struct {
	// Dialects to expand each input into
	Dialects []dialect.Dialect

	// Options for the preprocessor; Dialect is set per expansion
	Options preprocessor.Options
}

// DefaultDialect is used when neither the config nor the CLI names one.
const DefaultDialect = "both"

// Merge merges CLI options with config file options.
// CLI options override config file options when specified. Include
// directories accumulate: config first, then CLI, then IncludePath.
func (c *Config) Merge(cli MergeOptions) (Settings, error) {
	if c == nil {
		c = &Config{}
	}

	name := DefaultDialect
	if c.Dialect != "" {
		name = c.Dialect
	}
	if cli.Dialect != "" {
		name = cli.Dialect
	}
	dialects, err := ParseDialects(name)
	if err != nil {
		return Settings{}, err
	}

	var opts preprocessor.Options
	opts.IncludeDirs = append(opts.IncludeDirs, c.IncludeDirs...)
	cliDirs, err := resolveDirs("", cli.IncludeDirs)
	if err != nil {
		return Settings{}, err
	}
	opts.IncludeDirs = append(opts.IncludeDirs, cliDirs...)
	envDirs, err := resolveDirs("", filepath.SplitList(cli.IncludePath))
	if err != nil {
		return Settings{}, err
	}
	opts.IncludeDirs = append(opts.IncludeDirs, envDirs...)

	opts.BaseBindingIndex = pick(c.BaseBindingIndex, cli.BaseBindingIndex)
	opts.StrictBindings = pick(c.StrictBindings, cli.StrictBindings)
	opts.RewriteMul = pick(c.RewriteMul, cli.RewriteMul)
	opts.MaxIncludeDepth = pick(c.MaxIncludeDepth, cli.MaxIncludeDepth)
	opts.GenerateSourceMap = pick(c.SourceMap, cli.SourceMap)
	if opts.MaxIncludeDepth < 0 {
		return Settings{}, fmt.Errorf("maxIncludeDepth must not be negative, got %d", opts.MaxIncludeDepth)
	}

	return Settings{Dialects: dialects, Options: opts}, nil
}

// pick returns the CLI value if set, else the config value, else zero.
func pick[T any](cfg, cli *T) T {
	var v T
	if cfg != nil {
		v = *cfg
	}
	if cli != nil {
		v = *cli
	}
	return v
}
