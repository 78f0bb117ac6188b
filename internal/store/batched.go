package store

// SnapshotBatch buffers everything one file contributes to a snapshot so
// that parsing can happen off the writer goroutine. Nothing touches SQLite
// until CommitSnapshot.
type SnapshotBatch struct {
	Path     string
	Grammar  string
	Snapshot Snapshot
	Subtrees []Subtree
}

// NewSnapshotBatch starts a batch for path.
func NewSnapshotBatch(path, grammar string) *SnapshotBatch {
	return &SnapshotBatch{Path: path, Grammar: grammar}
}

// AddSubtree buffers one subtree row.
func (b *SnapshotBatch) AddSubtree(st Subtree) {
	b.Subtrees = append(b.Subtrees, st)
}
