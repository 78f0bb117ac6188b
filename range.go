package arbor

import (
	"fmt"
	"sort"
)

// Point is a zero-based row and column. Columns count bytes, not runes.
type Point struct {
	Row    uint32 `json:"row" yaml:"row"`
	Column uint32 `json:"column" yaml:"column"`
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// Less reports whether p sorts before o.
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start uint32 `json:"start" yaml:"start"`
	End   uint32 `json:"end" yaml:"end"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Len returns the number of bytes covered by r.
func (r Range) Len() uint32 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty reports whether r covers no bytes.
func (r Range) Empty() bool { return r.End <= r.Start }

// Contains reports whether byte offset b falls inside r.
func (r Range) Contains(b uint32) bool {
	return r.Start <= b && b < r.End
}

// Covers reports whether o lies entirely within r.
func (r Range) Covers(o Range) bool {
	return r.Start <= o.Start && o.End <= r.End
}

// Intersects reports whether r and o share at least one byte. An empty range
// intersects o when its position lies inside o.
func (r Range) Intersects(o Range) bool {
	if r.Empty() {
		return o.Start <= r.Start && r.Start < o.End
	}
	if o.Empty() {
		return r.Start <= o.Start && o.Start < r.End
	}
	return r.Start < o.End && o.Start < r.End
}

// PointRange is the row/column counterpart of a Range.
type PointRange struct {
	Start Point `json:"start" yaml:"start"`
	End   Point `json:"end" yaml:"end"`
}

// lineIndex maps between byte offsets and points for one source buffer.
type lineIndex struct {
	starts []uint32 // byte offset of the first byte of each line
	size   uint32
}

func newLineIndex(src []byte) lineIndex {
	starts := []uint32{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return lineIndex{starts: starts, size: uint32(len(src))}
}

// point converts a byte offset to a point. Offsets past the end clamp to it.
func (li lineIndex) point(b uint32) Point {
	if b > li.size {
		b = li.size
	}
	row := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > b }) - 1
	return Point{Row: uint32(row), Column: b - li.starts[row]}
}

// offset converts a point to a byte offset. Columns past the end of their
// line clamp to the line terminator; rows past the last line clamp to the
// end of the buffer.
func (li lineIndex) offset(p Point) uint32 {
	if int(p.Row) >= len(li.starts) {
		return li.size
	}
	start := li.starts[p.Row]
	end := li.size
	if int(p.Row)+1 < len(li.starts) {
		end = li.starts[p.Row+1] - 1
	}
	if p.Column > end-start {
		return end
	}
	return start + p.Column
}

// exactOffset converts a point to a byte offset without clamping. It
// reports false when the row does not exist or the column runs past the
// end of its line.
func (li lineIndex) exactOffset(p Point) (uint32, bool) {
	if int(p.Row) >= len(li.starts) {
		return 0, false
	}
	start := li.starts[p.Row]
	end := li.size
	if int(p.Row)+1 < len(li.starts) {
		end = li.starts[p.Row+1] - 1
	}
	if p.Column > end-start {
		return 0, false
	}
	return start + p.Column, true
}

// lines returns the number of lines in the buffer.
func (li lineIndex) lines() int { return len(li.starts) }
