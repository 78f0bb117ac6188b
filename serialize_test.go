package arbor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestToMap_Defaults(t *testing.T) {
	t.Parallel()
	tree := parseString(t, "python", "x = 1\n")

	m := tree.ToMap()
	assert.Equal(t, "module", m.Type)
	assert.Nil(t, m.ByteRange)
	require.Len(t, m.Children, 1)
	assign := m.Children[0].Children[0]
	assert.Equal(t, "assignment", assign.Type)
	require.Len(t, assign.Children, 2)
	assert.Equal(t, "identifier", assign.Children[0].Type)
	assert.Equal(t, "integer", assign.Children[1].Type)
	assert.Nil(t, assign.Children[0].Text)
}

func TestToMap_Options(t *testing.T) {
	t.Parallel()
	tree := parseString(t, "python", "x = 1\n")

	m := tree.ToMap(ByteRanges(true), Unnamed(true), WithText(true))
	assert.Equal(t, []uint32{0, 6}, m.ByteRange)
	assign := m.Children[0].Children[0]
	require.Len(t, assign.Children, 3)
	assert.Equal(t, "=", assign.Children[1].Type)
	require.NotNil(t, assign.Children[1].Text)
	assert.Equal(t, "=", *assign.Children[1].Text)
	assert.Equal(t, []uint32{2, 3}, assign.Children[1].ByteRange)
}

func TestToMap_Deterministic(t *testing.T) {
	t.Parallel()
	a := parseString(t, "python", pySample)
	b := parseString(t, "python", pySample)

	assert.True(t, a.ToMap(ByteRanges(true)).Equal(b.ToMap(ByteRanges(true))))
	assert.False(t, a.ToMap().Equal(parseString(t, "python", "x = 1\n").ToMap()))
}

func TestToMap_JSONAndYAMLKeys(t *testing.T) {
	t.Parallel()
	tree := parseString(t, "python", "x = 1\n")

	raw, err := json.Marshal(tree.ToMap())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "byte_range")
	assert.Contains(t, string(raw), `"children":[]`)

	raw, err = json.Marshal(tree.ToMap(ByteRanges(true)))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"byte_range":[0,6]`)

	out, err := yaml.Marshal(tree.ToMap(ByteRanges(true)))
	require.NoError(t, err)
	assert.Contains(t, string(out), "type: module")
	assert.Contains(t, string(out), "byte_range: [0, 6]")
}

func TestToMap_AsMap(t *testing.T) {
	t.Parallel()
	tree := parseString(t, "python", "x = 1\n")

	m := tree.ToMap(ByteRanges(true)).AsMap()
	assert.Equal(t, "module", m["type"])
	assert.Equal(t, []any{int64(0), int64(6)}, m["byte_range"])
	assert.Len(t, m["children"], 1)
}
