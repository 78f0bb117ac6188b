package store

import "time"

// File is a tracked source path and the grammar it was last parsed with.
type File struct {
	ID      int64
	Path    string
	Grammar string
}

// Snapshot is one stored version of a file.
type Snapshot struct {
	ID         int64
	FileID     int64
	Hash       string
	Source     []byte
	NodeCount  int
	ErrorCount int
	LineCount  int
	TakenAt    time.Time
}

// Subtree is a repeated or notable subtree shape recorded for a snapshot.
// Count is the number of occurrences within that snapshot; the position is
// that of the first occurrence.
type Subtree struct {
	ID         int64
	SnapshotID int64
	Digest     string
	Type       string
	Size       int
	Count      int
	StartByte  int
	EndByte    int
	StartLine  int
	StartCol   int
}

// Duplicate aggregates one subtree shape across the latest snapshot of
// every file.
type Duplicate struct {
	Digest      string
	Type        string
	Size        int
	Total       int
	Occurrences []Occurrence
}

// Occurrence locates the first instance of a shape in one file.
type Occurrence struct {
	Path      string
	Count     int
	StartLine int
	StartCol  int
	StartByte int
	EndByte   int
}
