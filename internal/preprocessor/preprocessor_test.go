package preprocessor

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
	"github.com/HugoDaniel/csl/internal/fsys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expand(t *testing.T, files map[string]string, root string, opts Options) (*Result, error) {
	t.Helper()
	mem, err := fsys.NewMemory(files)
	require.NoError(t, err)
	opts.FS = mem
	return New(opts).Expand(root)
}

func mustExpand(t *testing.T, files map[string]string, opts Options) *Result {
	t.Helper()
	result, err := expand(t, files, "main.csl", opts)
	require.NoError(t, err)
	return result
}

func kindOf(t *testing.T, err error) *diagnostic.Error {
	t.Helper()
	var e *diagnostic.Error
	require.True(t, errors.As(err, &e), "not a diagnostic error: %v", err)
	return e
}

func TestPlaceholderScenario(t *testing.T) {
	line := "#glsl layout(binding=?) uniform sampler2D tex;\n"

	result := mustExpand(t, map[string]string{"main.csl": line}, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "layout(binding=0) uniform sampler2D tex;\n", result.Code)

	result = mustExpand(t, map[string]string{"main.csl": line + line}, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "layout(binding=0) uniform sampler2D tex;\nlayout(binding=1) uniform sampler2D tex;\n", result.Code)
	assert.Equal(t, 2, result.Stats.Placeholders)

	// The GLSL line does not exist in HLSL output.
	result = mustExpand(t, map[string]string{"main.csl": line}, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "", result.Code)
}

func TestBaseBindingIndex(t *testing.T) {
	files := map[string]string{"main.csl": "layout(binding = ?) uniform A a;\nlayout(binding = 6) uniform B b;\nlayout(binding = ?) uniform C c;\n"}
	result := mustExpand(t, files, Options{Dialect: dialect.GLSL, BaseBindingIndex: 5})
	assert.Equal(t, "layout(binding = 5) uniform A a;\nlayout(binding = 6) uniform B b;\nlayout(binding = 7) uniform C c;\n", result.Code)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, diagnostic.MixedBindingScheme.Code(), result.Warnings[0].Code)
}

func TestDialectFiltering(t *testing.T) {
	files := map[string]string{"main.csl": `#version 450
#hlsl float4 h;
#glsl vec4 g;
#both vec3 b;
#hlsl{
    float x;
}
#glsl
{
    float y;
}
#both{ mat4 m; }
vec2 plain;
shared vec4 cache[4];
`}

	hlsl := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, `#version 450
float4 h;
float3 b;
    float x;
float4x4 m;
float2 plain;
groupshared float4 cache[4];
`, hlsl.Code)

	glsl := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, `#version 450
vec4 g;
vec3 b;
    float y;
mat4 m;
vec2 plain;
shared vec4 cache[4];
`, glsl.Code)
}

func TestHLSLTaggedCodeIsNotRewritten(t *testing.T) {
	files := map[string]string{"main.csl": "#hlsl{\n    vec4 notATypeHere;\n}\n"}
	result := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "    vec4 notATypeHere;\n", result.Code)
}

func TestMixedLines(t *testing.T) {
	files := map[string]string{"main.csl": "#hlsl float4 c; #glsl vec4 c;\n" +
		"    pos = #glsl m * v; #hlsl mul(m, v);\n" +
		"#both x = 1; #glsl y = 2; #hlsl y = 3;\n"}

	hlsl := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "float4 c; \n    pos = mul(m, v);\nx = 1; y = 3;\n", hlsl.Code)

	glsl := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "vec4 c;\n    pos = m * v; \nx = 1; y = 2; \n", glsl.Code)

	// #both paired with a single dialect keyword is still split.
	files = map[string]string{"main.csl": "#both x; #hlsl y;\nz = #glsl w; #both v;\n"}

	hlsl = mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "x; y;\nz = v;\n", hlsl.Code)

	glsl = mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "x; \nz = w; v;\n", glsl.Code)
}

func TestMixedLineErrors(t *testing.T) {
	_, err := expand(t, map[string]string{"main.csl": "ok\n#hlsl a; #glsl b; #hlsl c;\n"}, "main.csl", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.RepeatedKeyword))
	e := kindOf(t, err)
	assert.Equal(t, "main.csl", e.Path)
	assert.Equal(t, 2, e.Line)

	_, err = expand(t, map[string]string{"main.csl": "#hlsl #glsl b;\n"}, "main.csl", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.EmptySection))

	_, err = expand(t, map[string]string{"main.csl": "#both a; #both b;\n"}, "main.csl", Options{Dialect: dialect.HLSL})
	assert.True(t, errors.Is(err, diagnostic.RepeatedKeyword))

	_, err = expand(t, map[string]string{"main.csl": "#both #hlsl b;\n"}, "main.csl", Options{Dialect: dialect.HLSL})
	assert.True(t, errors.Is(err, diagnostic.EmptySection))
}

func TestPrefixBeforeKeyword(t *testing.T) {
	files := map[string]string{"main.csl": "out = #glsl vec4(1);\nvec2 v = #hlsl{\n    x;\n}\n"}

	glsl := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "out = vec4(1);\nvec2 v = \n", glsl.Code)

	hlsl := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "out = \nfloat2 v = \n    x;\n", hlsl.Code)
}

func TestDirectiveErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   diagnostic.Kind
		line   int
	}{
		{"unterminated block", "a\n#hlsl{\nfloat4 x;\n", diagnostic.UnterminatedBlock, 2},
		{"eof after keyword", "a\n#glsl\n", diagnostic.UnexpectedEOF, 2},
		{"missing brace", "#both\nvec4 a;\n", diagnostic.ExpectedBlockStart, 2},
		{"include without quotes", "#include common.glsl\n", diagnostic.MissingQuotes, 1},
		{"include without path", "#include\n", diagnostic.NothingAfterKeyword, 1},
		{"binding without digit", "#glsl{\nlayout(binding = ) uniform A a;\n}\n", diagnostic.MissingIndex, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expand(t, map[string]string{"main.csl": tt.source}, "main.csl", Options{Dialect: dialect.GLSL})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			e := kindOf(t, err)
			assert.Equal(t, "main.csl", e.Path)
			assert.Equal(t, tt.line, e.Line)
		})
	}

	_, err := expand(t, map[string]string{"main.csl": "#hlsl{\nfloat4 x;\n"}, "main.csl", Options{Dialect: dialect.HLSL})
	assert.Contains(t, err.Error(), `"#hlsl"`)
}

func TestIncludeNotFound(t *testing.T) {
	_, err := expand(t, map[string]string{
		"shaders/main.csl": "#include \"missing.glsl\"\n",
		"inc/other.glsl":   "",
	}, "shaders/main.csl", Options{Dialect: dialect.GLSL, IncludeDirs: []string{"inc"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostic.IncludeNotFound))
	assert.Contains(t, err.Error(), "missing.glsl")
	e := kindOf(t, err)
	assert.Equal(t, "shaders/main.csl", e.Path)
	assert.Equal(t, 1, e.Line)
}

func TestIncludeResolution(t *testing.T) {
	files := map[string]string{
		"shaders/main.csl":     "#include \"local.glsl\"\n#include \"common.glsl\"\n#include \"shared.glsl\"\n",
		"shaders/local.glsl":   "local\n",
		"inc1/common.glsl":     "common from inc1\n",
		"inc2/common.glsl":     "common from inc2\n",
		"inc2/shared.glsl":     "shared from inc2\n",
		"shaders/unused.glsl":  "unused\n",
		"inc1/nested/x.glsl":   "x\n",
		"inc1/nested/y.glsl":   "#include \"x.glsl\"\n",
		"shaders/nested.csl":   "#include \"nested/y.glsl\"\n",
		"shaders/includes.csl": "",
	}
	opts := Options{Dialect: dialect.GLSL, IncludeDirs: []string{"inc1", "inc2"}}

	result, err := expand(t, files, "shaders/main.csl", opts)
	require.NoError(t, err)
	assert.Equal(t, "local\ncommon from inc1\nshared from inc2\n", result.Code)
	assert.Equal(t, []string{"shaders/main.csl", "shaders/local.glsl", "inc1/common.glsl", "inc2/shared.glsl"}, result.Files)
	assert.Equal(t, 3, result.Stats.Includes)

	// Nested includes resolve against the directory of the file that includes them.
	result, err = expand(t, files, "shaders/nested.csl", opts)
	require.NoError(t, err)
	assert.Equal(t, "x\n", result.Code)
}

func TestIncludeAssociativity(t *testing.T) {
	files := map[string]string{
		"main.csl":   "a1\n#include \"b.glsl\"\na2\n#glsl layout(binding=?) uniform A a;\n",
		"b.glsl":     "b1\n#include \"lib/c.glsl\"\nb2\n",
		"lib/c.glsl": "#glsl layout(binding=?) uniform C c;\n#hlsl Texture2D c : register(t?);\nvec4 c1;\n",
		"flat.csl": "a1\nb1\n#glsl layout(binding=?) uniform C c;\n#hlsl Texture2D c : register(t?);\nvec4 c1;\nb2\na2\n" +
			"#glsl layout(binding=?) uniform A a;\n",
	}
	for _, d := range dialect.All {
		nested, err := expand(t, files, "main.csl", Options{Dialect: d})
		require.NoError(t, err)
		flat, err := expand(t, files, "flat.csl", Options{Dialect: d})
		require.NoError(t, err)
		assert.Equal(t, flat.Code, nested.Code, d.String())
	}
}

func TestBindingsAcrossIncludes(t *testing.T) {
	files := map[string]string{
		"main.csl": "Texture2D a : register(t?);\n#include \"more.hlsl\"\nTexture2D c : register(t?);\nRWBuffer<float> u : register(u?);\n",
		"more.hlsl": "Texture2D b : register(t0, space1);\nTexture2D d : register(t?, space1);\n" +
			"SamplerState s : register(s?);\nTexture2D e : register(t?);\n",
	}
	result := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "Texture2D a : register(t0);\n"+
		"Texture2D b : register(t0, space1);\n"+
		"Texture2D d : register(t1, space1);\n"+
		"SamplerState s : register(s0);\n"+
		"Texture2D e : register(t1);\n"+
		"Texture2D c : register(t2);\n"+
		"RWBuffer<float> u : register(u0);\n", result.Code)

	require.Len(t, result.Bindings, 7)
	assert.Equal(t, Binding{Register: "t", Space: 1, Index: 0, Path: "more.hlsl", Line: 1}, result.Bindings[1])
	assert.Equal(t, Binding{Register: "t", Index: 2, Assigned: true, Path: "main.csl", Line: 3}, result.Bindings[5])

	// Every bucket holds distinct indices.
	seen := map[Binding]bool{}
	for _, b := range result.Bindings {
		key := Binding{Register: b.Register, Space: b.Space, Index: b.Index}
		assert.False(t, seen[key], "duplicate %+v", key)
		seen[key] = true
	}
}

func TestStrictBindings(t *testing.T) {
	files := map[string]string{
		"main.csl":  "#include \"a.glsl\"\n",
		"a.glsl":    "layout(binding = 0) uniform A a;\nlayout(binding = ?) uniform B b;\n",
		"other.csl": "",
	}
	result := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "layout(binding = 0) uniform A a;\nlayout(binding = 1) uniform B b;\n", result.Code)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "a.glsl", result.Warnings[0].Path)
	assert.Equal(t, 2, result.Warnings[0].Line)

	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.GLSL, StrictBindings: true})
	assert.True(t, errors.Is(err, diagnostic.MixedBindingScheme))
	e := kindOf(t, err)
	assert.Equal(t, "a.glsl", e.Path)
	assert.Equal(t, 2, e.Line)
}

func TestBindingLookalikesPassThrough(t *testing.T) {
	code := "void main() {\n    uint binding = idx;\n}\n"
	result := mustExpand(t, map[string]string{"main.csl": code}, Options{Dialect: dialect.GLSL})
	assert.Equal(t, code, result.Code)
	assert.Empty(t, result.Bindings)

	files := map[string]string{"main.csl": "#hlsl float4 k : register(c0);\n#hlsl Texture2D a : register(t?);\n"}
	result = mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "float4 k : register(c0);\nTexture2D a : register(t0);\n", result.Code)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Bindings, 1)

	_, err := expand(t, map[string]string{"main.csl": "#hlsl float4 k : register(c?);\n"}, "main.csl", Options{Dialect: dialect.HLSL})
	assert.True(t, errors.Is(err, diagnostic.UnsupportedRegisterType))
	assert.Equal(t, 1, kindOf(t, err).Line)
}

func TestNestedErrorKeepsLocation(t *testing.T) {
	files := map[string]string{
		"main.csl":     "#include \"inc/b.glsl\"\n",
		"inc/b.glsl":   "ok\n#include \"c.glsl\"\n",
		"inc/c.glsl":   "c\n#hlsl{\nfloat a;\n",
		"inc/ok.glsl":  "",
		"unrelated.gl": "",
	}
	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.HLSL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostic.UnterminatedBlock))
	e := kindOf(t, err)
	assert.Equal(t, "inc/c.glsl", e.Path)
	assert.Equal(t, 2, e.Line)
}

func TestCircularInclude(t *testing.T) {
	files := map[string]string{
		"main.csl": "#include \"a.glsl\"\n",
		"a.glsl":   "a\n#include \"b.glsl\"\n",
		"b.glsl":   "#include \"a.glsl\"\n",
	}
	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.GLSL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagnostic.CircularInclude))
	e := kindOf(t, err)
	assert.Equal(t, "b.glsl", e.Path)
	assert.Contains(t, e.Message, "a.glsl -> b.glsl -> a.glsl")

	// Including the same file twice is not a cycle.
	files = map[string]string{
		"main.csl": "#include \"a.glsl\"\n#include \"a.glsl\"\n",
		"a.glsl":   "a\n",
	}
	result := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "a\na\n", result.Code)
	assert.Equal(t, 2, result.Stats.Files)
}

func TestIncludeDepth(t *testing.T) {
	files := map[string]string{
		"main.csl": "#include \"1.glsl\"\n",
		"1.glsl":   "#include \"2.glsl\"\n",
		"2.glsl":   "#include \"3.glsl\"\n",
		"3.glsl":   "end\n",
	}
	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.GLSL, MaxIncludeDepth: 2})
	assert.True(t, errors.Is(err, diagnostic.IncludeDepthExceeded))
	assert.Equal(t, "2.glsl", kindOf(t, err).Path)

	result := mustExpand(t, files, Options{Dialect: dialect.GLSL, MaxIncludeDepth: 3})
	assert.Equal(t, "end\n", result.Code)
}

func TestAdditionalConstantsGLSL(t *testing.T) {
	files := map[string]string{
		"main.csl": "layout(push_constant) uniform Constants\n{\n    uint frame;\n} constants;\n#include \"extra.glsl\"\nvoid main() {}\n",
		"extra.glsl": "#additional_push_constants\n{\n    uint extra;\n}\n" +
			"#additional_root_constants uint rootOnly;\n" +
			"#additional_shader_constants{ vec4 tint; }\n",
	}
	result := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "layout(push_constant) uniform Constants\n{\n    uint frame;\n    uint extra;\nvec4 tint;\n} constants;\nvoid main() {}\n", result.Code)
	assert.Equal(t, 2, result.Stats.Constants)
}

func TestAdditionalConstantsHLSL(t *testing.T) {
	files := map[string]string{
		"main.csl": "#hlsl struct RootConstants { uint frame; };\n#include \"extra.glsl\"\n",
		"extra.glsl": "#additional_push_constants uint pushOnly;\n" +
			"#additional_root_constants uint rootOnly;\n" +
			"#additional_shader_constants{ vec4 tint; }\n",
	}
	result := mustExpand(t, files, Options{Dialect: dialect.HLSL})
	assert.Equal(t, "struct RootConstants { uint frame;\nuint rootOnly;\nfloat4 tint;\n};\n", result.Code)
}

func TestAdditionalConstantsWithoutAnchor(t *testing.T) {
	files := map[string]string{"main.csl": "#additional_shader_constants uint a;\nvoid main() {}\n"}
	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.ConstantsAnchorMissing))
	assert.Equal(t, "main.csl", kindOf(t, err).Path)

	// Fragments the dialect does not take need no anchor.
	result := mustExpand(t, map[string]string{"main.csl": "#additional_root_constants uint a;\n"}, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "", result.Code)
}

func TestRewriteMul(t *testing.T) {
	files := map[string]string{"main.csl": "#both pos = mul(proj, mul(view, p));\n#hlsl x = mul(a, b);\n"}

	result := mustExpand(t, files, Options{Dialect: dialect.GLSL, RewriteMul: true})
	assert.Equal(t, "pos = (proj * (view * p));\n", result.Code)

	result = mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "pos = mul(proj, mul(view, p));\n", result.Code)

	_, err := expand(t, map[string]string{"main.csl": "p = mul(a);\n"}, "main.csl", Options{Dialect: dialect.GLSL, RewriteMul: true})
	assert.True(t, errors.Is(err, diagnostic.UnsupportedConstruct))
}

func TestRoundTripStability(t *testing.T) {
	files := map[string]string{
		"main.csl": "layout(push_constant) uniform C { uint a; } c;\n" +
			"#include \"inc.glsl\"\n" +
			"#hlsl float4 c; #glsl vec4 c;\n" +
			"#hlsl struct RootConstants { uint a; };\n",
		"inc.glsl": "#glsl layout(binding = ?) uniform sampler2D t;\n" +
			"#hlsl Texture2D t : register(t?);\n" +
			"#additional_shader_constants uint b;\n" +
			"shared vec3 v;\r\n",
	}
	for _, d := range dialect.All {
		first := mustExpand(t, files, Options{Dialect: d})
		second := mustExpand(t, map[string]string{"main.csl": first.Code}, Options{Dialect: d})
		assert.Equal(t, first.Code, second.Code, d.String())
	}
}

func TestRootFileErrors(t *testing.T) {
	files := map[string]string{"dir/inner.csl": ""}

	_, err := expand(t, files, "nope.csl", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.FileNotFound))
	assert.Equal(t, "nope.csl", kindOf(t, err).Path)

	_, err = expand(t, files, "dir", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.NotAFile))

	_, err = expand(t, files, "", Options{Dialect: dialect.GLSL})
	assert.True(t, errors.Is(err, diagnostic.NoParentPath))

	_, err = expand(t, files, "dir/inner.csl", Options{})
	assert.ErrorIs(t, err, ErrDialect)
}

func TestLineEndingsAndBOM(t *testing.T) {
	files := map[string]string{"main.csl": "\xef\xbb\xbfvec4 a;\r\nvec4 b;\r\n"}
	result := mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Equal(t, "vec4 a;\nvec4 b;\n", result.Code)
	assert.Equal(t, 2, result.Stats.InputLines)
	assert.Equal(t, 2, result.Stats.OutputLines)
}

func TestSourceMap(t *testing.T) {
	files := map[string]string{
		"main.csl": "a\n#include \"b.glsl\"\n#hlsl skipped\nc\n",
		"b.glsl":   "b1\nb2\n",
	}
	result := mustExpand(t, files, Options{
		Dialect:           dialect.GLSL,
		GenerateSourceMap: true,
		SourceMapOptions:  SourceMapOptions{File: "main.glsl", IncludeSource: true},
	})
	require.NotNil(t, result.SourceMap)
	assert.Equal(t, "main.glsl", result.SourceMap.File)
	assert.Equal(t, []string{"main.csl", "b.glsl"}, result.SourceMap.Sources)
	assert.Equal(t, files["b.glsl"], result.SourceMap.SourcesContent[1])

	tests := []struct {
		genLine int
		source  string
		line    int
	}{
		{1, "main.csl", 1},
		{2, "b.glsl", 1},
		{3, "b.glsl", 2},
		{4, "main.csl", 4},
	}
	for _, tt := range tests {
		source, line, ok := result.SourceMap.Lookup(tt.genLine)
		require.True(t, ok, "line %d", tt.genLine)
		assert.Equal(t, tt.source, source, "line %d", tt.genLine)
		assert.Equal(t, tt.line, line, "line %d", tt.genLine)
	}

	result = mustExpand(t, files, Options{Dialect: dialect.GLSL})
	assert.Nil(t, result.SourceMap)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	files := map[string]string{"main.csl": "#include \"a.glsl\"\n", "a.glsl": "a\n"}

	_, err := expand(t, files, "main.csl", Options{Dialect: dialect.GLSL, Logger: logger})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "expanding file")
	assert.Contains(t, buf.String(), "resolved=a.glsl")
}
