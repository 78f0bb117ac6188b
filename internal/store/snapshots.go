package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, grammar FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Grammar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every tracked file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, grammar FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Grammar); err != nil {
			return nil, fmt.Errorf("files: scan: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a file with all of its snapshots and subtrees.
func (s *Store) DeleteFile(path string) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

const snapshotColumns = "id, file_id, hash, source, node_count, error_count, line_count, taken_at"

func scanSnapshot(row interface{ Scan(...any) error }) (*Snapshot, error) {
	sn := &Snapshot{}
	err := row.Scan(&sn.ID, &sn.FileID, &sn.Hash, &sn.Source, &sn.NodeCount, &sn.ErrorCount, &sn.LineCount, &sn.TakenAt)
	return sn, err
}

// LatestSnapshot returns the newest snapshot of fileID, or nil if it has
// none.
func (s *Store) LatestSnapshot(fileID int64) (*Snapshot, error) {
	sn, err := scanSnapshot(s.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE file_id = ? ORDER BY id DESC LIMIT 1", fileID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return sn, nil
}

// SnapshotsByFile returns every snapshot of fileID, oldest first.
func (s *Store) SnapshotsByFile(fileID int64) ([]*Snapshot, error) {
	rows, err := s.db.Query(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE file_id = ? ORDER BY id", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshots by file: %w", err)
	}
	defer rows.Close()
	var out []*Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshots by file: scan: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keep snapshots of fileID and deletes the
// rest. It returns how many were deleted.
func (s *Store) PruneSnapshots(fileID int64, keep int) (int, error) {
	snaps, err := s.SnapshotsByFile(fileID)
	if err != nil {
		return 0, err
	}
	if len(snaps) <= keep {
		return 0, nil
	}
	stale := snaps[:len(snaps)-keep]
	ids := make([]int64, len(stale))
	for i, sn := range stale {
		ids[i] = sn.ID
	}
	res, err := s.db.Exec(
		"DELETE FROM snapshots WHERE id IN ("+placeholderList(len(ids))+")", int64sToArgs(ids)...,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) SubtreesBySnapshot(snapshotID int64) ([]*Subtree, error) {
	rows, err := s.db.Query(
		`SELECT id, snapshot_id, digest, type, size, count, start_byte, end_byte, start_line, start_col
		 FROM subtrees WHERE snapshot_id = ? ORDER BY start_byte`, snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("subtrees by snapshot: %w", err)
	}
	defer rows.Close()
	var out []*Subtree
	for rows.Next() {
		st := &Subtree{}
		if err := rows.Scan(&st.ID, &st.SnapshotID, &st.Digest, &st.Type, &st.Size, &st.Count,
			&st.StartByte, &st.EndByte, &st.StartLine, &st.StartCol); err != nil {
			return nil, fmt.Errorf("subtrees by snapshot: scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Duplicates aggregates subtree shapes over the latest snapshot of every
// file and returns those occurring at least minCount times in total with at
// least minSize named nodes, most frequent first.
func (s *Store) Duplicates(minCount, minSize int) ([]*Duplicate, error) {
	rows, err := s.db.Query(`
		SELECT st.digest, st.type, st.size, st.count, f.path,
		       st.start_line, st.start_col, st.start_byte, st.end_byte
		FROM subtrees st
		JOIN snapshots sn ON sn.id = st.snapshot_id
		JOIN files f ON f.id = sn.file_id
		WHERE sn.id = (SELECT MAX(id) FROM snapshots WHERE file_id = f.id)
		  AND st.size >= ?
		ORDER BY st.digest, f.path`, minSize)
	if err != nil {
		return nil, fmt.Errorf("duplicates: %w", err)
	}
	defer rows.Close()

	byDigest := map[string]*Duplicate{}
	for rows.Next() {
		var d Duplicate
		var o Occurrence
		if err := rows.Scan(&d.Digest, &d.Type, &d.Size, &o.Count, &o.Path,
			&o.StartLine, &o.StartCol, &o.StartByte, &o.EndByte); err != nil {
			return nil, fmt.Errorf("duplicates: scan: %w", err)
		}
		agg, ok := byDigest[d.Digest]
		if !ok {
			agg = &Duplicate{Digest: d.Digest, Type: d.Type, Size: d.Size}
			byDigest[d.Digest] = agg
		}
		agg.Total += o.Count
		agg.Occurrences = append(agg.Occurrences, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duplicates: %w", err)
	}

	var out []*Duplicate
	for _, d := range byDigest {
		if d.Total >= minCount {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Digest < out[j].Digest
	})
	return out, nil
}
