package arbor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, grammar, src string) *Tree {
	t.Helper()
	tree, err := DefaultRegistry().Parse(context.Background(), grammar, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree
}

func nodeText(t *testing.T, n Node) string {
	t.Helper()
	s, err := n.Text()
	require.NoError(t, err)
	return s
}
