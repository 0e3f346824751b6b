// Command csl expands combined shader sources into HLSL and GLSL.
//
// Usage:
//
//	csl [options] <input.csl>...
//
// Options:
//
//	-o <path>                  Output file, or directory with several outputs (default: stdout)
//	-dialect <name>            hlsl, glsl or both (default: both)
//	-I <dir>                   Add an include directory (repeatable)
//	-base-binding <n>          First automatically assigned GLSL binding
//	-strict-bindings           Reject mixed hardcoded and placeholder indices
//	-rewrite-mul               Turn mul(a, b) into (a * b) for GLSL
//	-max-include-depth <n>     Limit include nesting
//	-config <file>             Use specific config file
//	-no-config                 Ignore config files
//	-source-map                Write a source map next to each output
//	-json                      Print a JSON report instead of code
//	-watch                     Re-expand when an input or included file changes
//	-v                         Log debug output to stderr
//	-version                   Print version and exit
//	-help                      Print help and exit
//
// Extra default arguments are read from CSL_FLAGS and extra include
// directories from CSL_INCLUDE_PATH.
//
// Config file:
//
//	csl looks for csl.toml, csl.yaml, csl.yml, csl.json or .cslrc in the
//	directory of the first input and its parents. Config file options are
//	overridden by CLI flags.
//
// Example csl.toml:
//
//	dialect = "both"
//	includeDirs = ["include"]
//	baseBindingIndex = 0
//	strictBindings = false
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/HugoDaniel/csl/internal/config"
	"github.com/mattn/go-shellwords"
	"github.com/muesli/termenv"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// errReported is returned after the failure has already been printed.
var errReported = errors.New("expansion failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, string(os.PathListSeparator)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// cli holds the parsed command line.
type cli struct {
	output      string
	dialect     string
	includeDirs stringList
	baseBinding uint
	strict      bool
	rewriteMul  bool
	maxDepth    int
	configFile  string
	noConfig    bool
	sourceMap   bool
	json        bool
	watch       bool
	verbose     bool
	showVersion bool
	showHelp    bool

	inputs []string
	set    map[string]bool // flags given explicitly
}

func parseArgs(args []string, stderr io.Writer) (*cli, error) {
	if env := os.Getenv("CSL_FLAGS"); env != "" {
		extra, err := shellwords.Parse(env)
		if err != nil {
			return nil, fmt.Errorf("parsing CSL_FLAGS: %w", err)
		}
		args = append(extra, args...)
	}

	c := &cli{set: make(map[string]bool)}
	fs := flag.NewFlagSet("csl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&c.output, "o", "", "Write output to `path` (a directory when there are several outputs)")
	fs.StringVar(&c.dialect, "dialect", "", "Output `dialect`: hlsl, glsl or both")
	fs.Var(&c.includeDirs, "I", "Add an include `dir` (repeatable)")
	fs.UintVar(&c.baseBinding, "base-binding", 0, "First automatically assigned GLSL binding `index`")
	fs.BoolVar(&c.strict, "strict-bindings", false, "Reject mixed hardcoded and placeholder indices")
	fs.BoolVar(&c.rewriteMul, "rewrite-mul", false, "Turn mul(a, b) into (a * b) for GLSL")
	fs.IntVar(&c.maxDepth, "max-include-depth", 0, "Limit include nesting to `n` levels")
	fs.StringVar(&c.configFile, "config", "", "Use specific config `file`")
	fs.BoolVar(&c.noConfig, "no-config", false, "Ignore config files")
	fs.BoolVar(&c.sourceMap, "source-map", false, "Write a source map next to each output")
	fs.BoolVar(&c.json, "json", false, "Print a JSON report instead of code")
	fs.BoolVar(&c.watch, "watch", false, "Re-expand when an input or included file changes")
	fs.BoolVar(&c.verbose, "v", false, "Log debug output to stderr")
	fs.BoolVar(&c.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&c.showHelp, "help", false, "Print help and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "csl - combined shader preprocessor v%s\n\n", version)
		fmt.Fprintf(stderr, "Usage: csl [options] <input.csl>...\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  CSL_FLAGS         default arguments, parsed like a shell command line\n")
		fmt.Fprintf(stderr, "  CSL_INCLUDE_PATH  extra include directories\n")
		fmt.Fprintf(stderr, "\nConfig file:\n")
		fmt.Fprintf(stderr, "  Searches for %s in the input's and parent directories.\n", strings.Join(config.ConfigFileNames, ", "))
		fmt.Fprintf(stderr, "  CLI flags override config file settings.\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  csl -dialect hlsl shader.csl -o shader.hlsl\n")
		fmt.Fprintf(stderr, "  csl -I include -o build/ a.csl b.csl\n")
		fmt.Fprintf(stderr, "  csl -watch -o build/ shader.csl\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { c.set[f.Name] = true })
	c.inputs = fs.Args()
	if c.showHelp {
		fs.Usage()
	}
	return c, nil
}

// settings loads the config file and merges it with the command line.
func (c *cli) settings(log *slog.Logger) (config.Settings, error) {
	var cfg *config.Config
	if !c.noConfig {
		var (
			path string
			err  error
		)
		if c.configFile != "" {
			cfg, err = config.LoadFile(c.configFile)
			path = c.configFile
		} else {
			startDir, _ := os.Getwd()
			if len(c.inputs) > 0 {
				startDir = filepath.Dir(c.inputs[0])
			}
			cfg, path, err = config.Load(startDir)
		}
		if err != nil {
			return config.Settings{}, fmt.Errorf("loading config: %w", err)
		}
		if cfg != nil {
			log.Debug("using config", "path", path)
		}
	}

	merge := config.MergeOptions{
		Dialect:     c.dialect,
		IncludeDirs: c.includeDirs,
		IncludePath: os.Getenv("CSL_INCLUDE_PATH"),
	}
	if c.set["base-binding"] {
		base := uint32(c.baseBinding)
		if uint(base) != c.baseBinding {
			return config.Settings{}, fmt.Errorf("base binding %d out of range", c.baseBinding)
		}
		merge.BaseBindingIndex = &base
	}
	if c.set["strict-bindings"] {
		merge.StrictBindings = &c.strict
	}
	if c.set["rewrite-mul"] {
		merge.RewriteMul = &c.rewriteMul
	}
	if c.set["max-include-depth"] {
		merge.MaxIncludeDepth = &c.maxDepth
	}
	if c.set["source-map"] {
		merge.SourceMap = &c.sourceMap
	}
	return cfg.Merge(merge)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if c.showHelp {
		return nil
	}
	if c.showVersion {
		fmt.Fprintf(stdout, "csl v%s (%s)\n", version, commit)
		return nil
	}
	if len(c.inputs) == 0 {
		return fmt.Errorf("no input file specified")
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	settings, err := c.settings(log)
	if err != nil {
		return err
	}
	settings.Options.Logger = log

	jobs, err := plan(c.inputs, settings.Dialects, c.output)
	if err != nil {
		return err
	}

	b := &builder{
		settings: settings,
		jobs:     jobs,
		json:     c.json,
		stdout:   stdout,
		out:      termenv.NewOutput(stderr),
		log:      log,
	}
	files, err := b.build(ctx)
	if !c.watch || (err != nil && !errors.Is(err, errReported)) {
		return err
	}
	return b.watch(ctx, files)
}
