package scripts

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/runtime"
)

func TestFS_ContainsOutline(t *testing.T) {
	t.Parallel()
	names, err := fs.Glob(FS, "*.risor")
	require.NoError(t, err)
	assert.Contains(t, names, "outline.risor")
}

func TestOutline_Runs(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sample.py")
	src := "class A:\n    def f(self):\n        pass\n\ndef g():\n    pass\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	rt := runtime.NewRuntime(nil, "", runtime.WithRuntimeFS(FS))
	err := rt.RunScript(context.Background(), runtime.ScriptPath("outline"), map[string]any{
		"file_path": path,
	})
	require.NoError(t, err)
}
