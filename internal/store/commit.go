package store

import (
	"fmt"
	"time"
)

// CommitSnapshot writes a batch in a single transaction: the file row is
// created or its grammar updated, then the snapshot and its subtrees are
// inserted. IDs assigned by SQLite are written back into the batch.
func (s *Store) CommitSnapshot(batch *SnapshotBatch) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO files (path, grammar) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET grammar = excluded.grammar`,
		batch.Path, batch.Grammar,
	); err != nil {
		return 0, fmt.Errorf("commit snapshot: file %s: %w", batch.Path, err)
	}
	var fileID int64
	if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", batch.Path).Scan(&fileID); err != nil {
		return 0, fmt.Errorf("commit snapshot: file id %s: %w", batch.Path, err)
	}

	sn := &batch.Snapshot
	sn.FileID = fileID
	if sn.TakenAt.IsZero() {
		sn.TakenAt = time.Now()
	}
	res, err := tx.Exec(
		`INSERT INTO snapshots (file_id, hash, source, node_count, error_count, line_count, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sn.FileID, sn.Hash, sn.Source, sn.NodeCount, sn.ErrorCount, sn.LineCount, sn.TakenAt,
	)
	if err != nil {
		return 0, fmt.Errorf("commit snapshot: insert: %w", err)
	}
	sn.ID, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit snapshot: last insert id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO subtrees (snapshot_id, digest, type, size, count, start_byte, end_byte, start_line, start_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("commit snapshot: prepare subtrees: %w", err)
	}
	defer stmt.Close()
	for i := range batch.Subtrees {
		st := &batch.Subtrees[i]
		st.SnapshotID = sn.ID
		r, err := stmt.Exec(st.SnapshotID, st.Digest, st.Type, st.Size, st.Count,
			st.StartByte, st.EndByte, st.StartLine, st.StartCol)
		if err != nil {
			return 0, fmt.Errorf("commit snapshot: subtree %s: %w", st.Type, err)
		}
		st.ID, _ = r.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: commit: %w", err)
	}
	return sn.ID, nil
}
