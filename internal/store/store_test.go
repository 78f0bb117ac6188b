package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func commitTestSnapshot(t *testing.T, s *Store, path, source string, subtrees ...Subtree) *SnapshotBatch {
	t.Helper()
	b := NewSnapshotBatch(path, "python")
	b.Snapshot = Snapshot{
		Hash:      ContentHash([]byte(source)),
		Source:    []byte(source),
		NodeCount: 7,
		LineCount: 2,
		TakenAt:   time.Now().Truncate(time.Second),
	}
	for _, st := range subtrees {
		b.AddSubtree(st)
	}
	id, err := s.CommitSnapshot(b)
	require.NoError(t, err)
	require.Positive(t, id)
	return b
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "snapshots", "subtrees", "metadata"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestNewStore_InvalidPath(t *testing.T) {
	_, err := NewStore("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("schema")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("schema", "1"))
	require.NoError(t, s.SetMetadata("schema", "2"))
	v, err = s.GetMetadata("schema")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestCommitSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := commitTestSnapshot(t, s, "a.py", "x = 1\n",
		Subtree{Digest: "d1", Type: "call", Size: 4, Count: 2, StartByte: 0, EndByte: 4})

	f, err := s.FileByPath("a.py")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "python", f.Grammar)

	sn, err := s.LatestSnapshot(f.ID)
	require.NoError(t, err)
	require.NotNil(t, sn)
	assert.Equal(t, b.Snapshot.ID, sn.ID)
	assert.Equal(t, "x = 1\n", string(sn.Source))
	assert.Equal(t, ContentHash([]byte("x = 1\n")), sn.Hash)
	assert.Equal(t, 7, sn.NodeCount)

	subs, err := s.SubtreesBySnapshot(sn.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "call", subs[0].Type)
	assert.Equal(t, b.Subtrees[0].ID, subs[0].ID)
}

func TestLatestSnapshot_NewestWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	commitTestSnapshot(t, s, "a.py", "x = 1\n")
	second := commitTestSnapshot(t, s, "a.py", "x = 2\n")

	f, err := s.FileByPath("a.py")
	require.NoError(t, err)
	sn, err := s.LatestSnapshot(f.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Snapshot.ID, sn.ID)

	all, err := s.SnapshotsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLatestSnapshot_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f, err := s.FileByPath("nope.py")
	require.NoError(t, err)
	assert.Nil(t, f)
	sn, err := s.LatestSnapshot(42)
	require.NoError(t, err)
	assert.Nil(t, sn)
}

func TestPruneSnapshots(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, src := range []string{"a\n", "b\n", "c\n"} {
		commitTestSnapshot(t, s, "a.py", src, Subtree{Digest: src, Type: "module", Size: 1, Count: 1})
	}
	f, err := s.FileByPath("a.py")
	require.NoError(t, err)

	n, err := s.PruneSnapshots(f.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.SnapshotsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "c\n", string(all[0].Source))

	n, err = s.PruneSnapshots(f.ID, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteFile_Cascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := commitTestSnapshot(t, s, "a.py", "x\n", Subtree{Digest: "d", Type: "t", Size: 1, Count: 1})
	require.NoError(t, s.DeleteFile("a.py"))

	subs, err := s.SubtreesBySnapshot(b.Snapshot.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestDuplicates_AggregatesLatestSnapshots(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	commitTestSnapshot(t, s, "old.py", "stale\n",
		Subtree{Digest: "shared", Type: "call", Size: 4, Count: 9})
	commitTestSnapshot(t, s, "old.py", "fresh\n",
		Subtree{Digest: "shared", Type: "call", Size: 4, Count: 1, StartLine: 3})
	commitTestSnapshot(t, s, "b.py", "other\n",
		Subtree{Digest: "shared", Type: "call", Size: 4, Count: 2},
		Subtree{Digest: "small", Type: "identifier", Size: 1, Count: 5},
		Subtree{Digest: "single", Type: "if_statement", Size: 6, Count: 1})

	dupes, err := s.Duplicates(2, 2)
	require.NoError(t, err)
	require.Len(t, dupes, 1)
	d := dupes[0]
	assert.Equal(t, "shared", d.Digest)
	assert.Equal(t, 3, d.Total)
	require.Len(t, d.Occurrences, 2)
	assert.Equal(t, "b.py", d.Occurrences[0].Path)
	assert.Equal(t, "old.py", d.Occurrences[1].Path)
	assert.Equal(t, 3, d.Occurrences[1].StartLine)

	dupes, err = s.Duplicates(2, 1)
	require.NoError(t, err)
	require.Len(t, dupes, 2)
	assert.Equal(t, "small", dupes[0].Digest)
}
