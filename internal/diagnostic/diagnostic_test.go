package diagnostic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindIsErrorsIsTarget(t *testing.T) {
	err := New(IncludeNotFound, "unable to find included file %q", "missing.glsl")
	wrapped := fmt.Errorf("expanding: %w", err)

	assert.True(t, errors.Is(wrapped, IncludeNotFound))
	assert.False(t, errors.Is(wrapped, UnterminatedBlock))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, IncludeSyntax, e.Kind.Category())
	assert.Equal(t, "E0204", e.Kind.Code())
}

func TestEveryKindHasCode(t *testing.T) {
	for k := FileNotFound; k <= UnsupportedConstruct; k++ {
		assert.NotEmpty(t, k.Code(), "kind %d", k)
		assert.NotContains(t, k.String(), "Kind(", "kind %d", k)
	}
}

func TestAtKeepsInnermostLocation(t *testing.T) {
	inner := At(New(UnterminatedBlock, "unterminated"), "inner.glsl", 7, "#hlsl{")
	outer := At(inner, "root.glsl", 2, `#include "inner.glsl"`)

	var e *Error
	require.True(t, errors.As(outer, &e))
	assert.Equal(t, "inner.glsl", e.Path)
	assert.Equal(t, 7, e.Line)
	assert.Equal(t, "inner.glsl:7: unterminated", outer.Error())
}

func TestAtWrapsForeignErrors(t *testing.T) {
	err := At(fs.ErrPermission, "a.glsl", 0, "")

	assert.True(t, errors.Is(err, OpenFailed))
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.Nil(t, At(nil, "a.glsl", 1, ""))
}

func TestFormat(t *testing.T) {
	err := At(New(MissingQuotes, "expected quotes around the included path").WithText(`#include foo.glsl`, 10),
		"shaders/main.glsl", 3, "")

	got := Format(err)
	lines := strings.Split(got, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "shaders/main.glsl:3:10: error[E0202]: expected quotes around the included path", lines[0])
	assert.Equal(t, "    #include foo.glsl", lines[1])
	assert.Equal(t, strings.Repeat(" ", 13)+"^", lines[2])

	assert.Equal(t, "error: boom\n", Format(errors.New("boom")))
}

func TestList(t *testing.T) {
	var l List
	l.AddWarning(MixedBindingScheme, "a.hlsl", 4, "register t space 0 mixes hardcoded and placeholder indices")
	l.Add(Diagnostic{Severity: SeverityNote, Message: "first placeholder here"})

	assert.Equal(t, 2, l.Count())
	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "E0306", warnings[0].Code)
	assert.Equal(t, "a.hlsl:4: warning: register t space 0 mixes hardcoded and placeholder indices", warnings[0].String())

	out, err := json.Marshal(warnings[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"severity":"warning"`)
}
