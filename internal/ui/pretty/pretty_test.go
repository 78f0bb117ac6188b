package pretty

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor"
)

func parse(t *testing.T, src string) *arbor.Tree {
	t.Helper()
	tree, err := arbor.DefaultRegistry().Parse(context.Background(), "python", []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func TestIsColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, IsColorEnabled("always", &buf))
	assert.False(t, IsColorEnabled("never", &buf))
	assert.False(t, IsColorEnabled("auto", &buf))
}

func TestTerminalWidth_NonTerminal(t *testing.T) {
	t.Parallel()
	assert.Equal(t, defaultTermWidth, TerminalWidth(&bytes.Buffer{}))
}

func TestSnippet(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"abc"`, Snippet("abc", 0))
	assert.Equal(t, `"a\nb"`, Snippet("a\nb", 20))
	assert.Equal(t, `"abcd...`, Snippet("abcdefghijkl", 8))
	assert.Equal(t, "..", Snippet("abcdef", 2))
}

func TestRenderTree(t *testing.T) {
	t.Parallel()
	tree := parse(t, "x = 1\n")

	var buf bytes.Buffer
	require.NoError(t, RenderTree(&buf, NewStyles(false), tree.Root(), TreeOptions{Width: 80}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "module 0:0-1:0", lines[0])
	assert.Equal(t, `      left: identifier 0:0-0:1 "x"`, lines[3])

	buf.Reset()
	require.NoError(t, RenderTree(&buf, NewStyles(false), tree.Root(), TreeOptions{Unnamed: true}))
	assert.Contains(t, buf.String(), `"=" 0:2-0:3`)
}

func TestRenderDiff(t *testing.T) {
	t.Parallel()
	a := parse(t, "a = 1\n")
	b := parse(t, "a = 1\nz = 9\n")

	records, err := arbor.Diff(a, b)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderDiff(&buf, NewStyles(false), records, 80))
	out := buf.String()
	assert.Contains(t, out, "~ module 0:0 -> 0:0")
	assert.Contains(t, out, `+   expression_statement 1:0 "z = 9"`)
}
