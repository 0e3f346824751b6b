package fsys

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestMemory(t *testing.T) {
	m, err := NewMemory(map[string]string{
		"/shaders/main.glsl":       "#include \"common/util.glsl\"\n",
		"shaders/common/util.glsl": "float x;\n",
	})
	require.NoError(t, err)

	data, err := m.ReadFile("shaders/common/util.glsl")
	require.NoError(t, err)
	assert.Equal(t, "float x;\n", string(data))

	info, err := m.Stat("/shaders/common")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = m.Stat("shaders/missing.glsl")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestNormPath(t *testing.T) {
	assert.Equal(t, "a/b.glsl", NormPath("/a/./b.glsl"))
	assert.Equal(t, "b.glsl", NormPath("a/../b.glsl"))
	assert.Equal(t, ".", NormPath("/"))
}

func TestDecode(t *testing.T) {
	got, err := Decode([]byte("\xef\xbb\xbfvec3 a;"))
	require.NoError(t, err)
	assert.Equal(t, "vec3 a;", got)

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("float4 c;\r\n")
	require.NoError(t, err)
	got, err = Decode([]byte(utf16))
	require.NoError(t, err)
	assert.Equal(t, "float4 c;\r\n", got)

	// Without a BOM the bytes are kept as they are, even if not valid UTF-8.
	got, err = Decode([]byte("// caf\xe9\n"))
	require.NoError(t, err)
	assert.Equal(t, "// caf\xe9\n", got)
}

func TestOS(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.hlsl")
	require.NoError(t, os.WriteFile(p, []byte("\xef\xbb\xbfTexture2D t;"), 0o644))

	src, err := ReadSource(OS{}, p)
	require.NoError(t, err)
	assert.Equal(t, "Texture2D t;", src)

	info, err := OS{}.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
