package arbor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/logging"
)

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "db", "snapshots.db")
	opts = append([]EngineOption{WithLogger(logging.NewWriter(io.Discard, "error"))}, opts...)
	e, err := NewEngine(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEngine_SnapshotAndSkipUnchanged(t *testing.T) {
	t.Parallel()
	for _, parallel := range []bool{true, false} {
		e := newTestEngine(t, WithParallel(parallel))
		dir := t.TempDir()
		py := filepath.Join(dir, "a.py")
		writeFile(t, py, "x = 1\n")
		txt := filepath.Join(dir, "notes.txt")
		writeFile(t, txt, "hello\n")

		ctx := context.Background()
		results, err := e.Snapshot(ctx, []string{py, txt})
		require.NoError(t, err)
		require.Len(t, results, 1, "unsupported files are ignored")
		first := results[0]
		assert.False(t, first.Skipped)
		assert.Equal(t, "python", first.Grammar)
		assert.Positive(t, first.SnapshotID)
		assert.Positive(t, first.Nodes)
		assert.Zero(t, first.Errors)

		results, err = e.Snapshot(ctx, []string{py})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Skipped)
		assert.Equal(t, first.SnapshotID, results[0].SnapshotID)
		assert.False(t, e.DigestsChanged())
	}
}

func TestEngine_KeepPrunesOldSnapshots(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithKeep(2))
	py := filepath.Join(t.TempDir(), "a.py")
	ctx := context.Background()
	for _, src := range []string{"x = 1\n", "x = 2\n", "x = 3\n"} {
		writeFile(t, py, src)
		_, err := e.Snapshot(ctx, []string{py})
		require.NoError(t, err)
	}

	f, err := e.Store().FileByPath(py)
	require.NoError(t, err)
	require.NotNil(t, f)
	snaps, err := e.Store().SnapshotsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "x = 3\n", string(snaps[1].Source))
}

func TestEngine_DiffSnapshot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	py := filepath.Join(t.TempDir(), "a.py")
	writeFile(t, py, "x = 1\n")
	ctx := context.Background()
	_, err := e.Snapshot(ctx, []string{py})
	require.NoError(t, err)

	writeFile(t, py, "x = 1\ny = 2\n")
	d, err := e.DiffSnapshot(ctx, py)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "x = 1\n", string(d.Snapshot.Source))
	ops := make([]DiffOp, len(d.Records))
	for i, r := range d.Records {
		ops[i] = r.Op
	}
	assert.Equal(t, []DiffOp{DiffChanged, DiffInserted}, ops)
	assert.Equal(t, "y = 2", nodeText(t, d.Records[1].New))
}

func TestEngine_DiffSnapshotMissing(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	py := filepath.Join(t.TempDir(), "never.py")
	writeFile(t, py, "x = 1\n")

	_, err := e.DiffSnapshot(context.Background(), py)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestEngine_SnapshotDirectoryWalk(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.py"), "f(a)\n")
	writeFile(t, filepath.Join(dir, "src", "b.py"), "f(a)\ng = 1\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep.js"), "f(a)\n")
	writeFile(t, filepath.Join(dir, ".hidden", "c.py"), "f(a)\n")

	paths, err := e.walkListFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "src", "a.py"),
		filepath.Join(dir, "src", "b.py"),
	}, paths)

	_, err = e.Snapshot(context.Background(), paths)
	require.NoError(t, err)

	dupes, err := e.Duplicates(2, 4)
	require.NoError(t, err)
	require.Len(t, dupes, 2)
	assert.Equal(t, "expression_statement", dupes[0].Type)
	assert.Equal(t, "call", dupes[1].Type)
	for _, d := range dupes {
		assert.Equal(t, 2, d.Total)
		assert.Len(t, d.Occurrences, 2)
	}
}

func TestEngine_MinSubtreeSize(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithMinSubtreeSize(100))
	py := filepath.Join(t.TempDir(), "a.py")
	writeFile(t, py, "f(a)\nf(a)\n")

	results, err := e.Snapshot(context.Background(), []string{py})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Subtrees)
}

func TestEngine_ParallelErrorsFollowPathOrder(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithParallel(true))
	dir := t.TempDir()

	var paths []string
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py", "e.py", "f.py"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, "x = 1\n")
		paths = append(paths, p)
	}
	// A directory with a source extension fails while reading, before any parse.
	unreadable := filepath.Join(dir, "z.py")
	require.NoError(t, os.Mkdir(unreadable, 0o755))
	paths = append(paths, unreadable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 10 {
		results, err := e.Snapshot(ctx, paths)
		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "had 7 error(s): parse "+paths[0]+":")
		assert.Empty(t, results)
	}
}
