package arbor

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Query is a compiled tree-sitter pattern for one grammar. A Query may be
// run from several goroutines at once; each Run uses its own cursor.
type Query struct {
	grammar *Grammar
	pattern string
	q       *sitter.Query
}

// NewQuery compiles pattern for g.
func NewQuery(g *Grammar, pattern string) (*Query, error) {
	q, err := sitter.NewQuery([]byte(pattern), g.Language())
	if err != nil {
		return nil, fmt.Errorf("arbor: compile query for %s: %w: %w", g.Name(), ErrInvalidQuery, err)
	}
	return &Query{grammar: g, pattern: pattern, q: q}, nil
}

// Close releases the compiled query.
func (q *Query) Close() { q.q.Close() }

func (q *Query) Pattern() string { return q.pattern }

// Capture is one named node of a Match.
type Capture struct {
	Name string
	Node Node
}

// Match is one pattern match with its captures in capture order.
type Match struct {
	Pattern  int
	Captures []Capture
}

// Get returns the first node captured under name.
func (m Match) Get(name string) (Node, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c.Node, true
		}
	}
	return Node{}, false
}

// All returns every node captured under name.
func (m Match) All(name string) []Node {
	var out []Node
	for _, c := range m.Captures {
		if c.Name == name {
			out = append(out, c.Node)
		}
	}
	return out
}

// QueryOption restricts a Run to a region of the source.
type QueryOption func(*queryBounds)

type queryBounds struct {
	startByte, endByte   *uint32
	startPoint, endPoint *Point
}

func StartByte(b uint32) QueryOption {
	return func(qb *queryBounds) { qb.startByte = &b }
}

func EndByte(b uint32) QueryOption {
	return func(qb *queryBounds) { qb.endByte = &b }
}

func StartPoint(p Point) QueryOption {
	return func(qb *queryBounds) { qb.startPoint = &p }
}

func EndPoint(p Point) QueryOption {
	return func(qb *queryBounds) { qb.endPoint = &p }
}

// resolve turns the options into a byte window over t. A byte bound wins
// over the point bound for the same end. Every bound given must lie inside
// the source: a start before its end, an end at most at its end.
func (qb *queryBounds) resolve(t *Tree) (Range, bool, error) {
	if qb.startByte == nil && qb.endByte == nil && qb.startPoint == nil && qb.endPoint == nil {
		return Range{}, false, nil
	}
	size := uint32(len(t.source))
	var startAt, endAt uint32
	if qb.startPoint != nil {
		off, ok := t.lines.exactOffset(*qb.startPoint)
		if !ok || off >= size {
			return Range{}, false, fmt.Errorf("arbor: query start point %s: %w", *qb.startPoint, ErrOutOfRange)
		}
		startAt = off
	}
	if qb.endPoint != nil {
		off, ok := t.lines.exactOffset(*qb.endPoint)
		if !ok {
			return Range{}, false, fmt.Errorf("arbor: query end point %s: %w", *qb.endPoint, ErrOutOfRange)
		}
		endAt = off
	}
	if qb.startByte != nil && *qb.startByte >= size {
		return Range{}, false, fmt.Errorf("arbor: query start byte %d of %d: %w", *qb.startByte, size, ErrOutOfRange)
	}
	if qb.endByte != nil && *qb.endByte > size {
		return Range{}, false, fmt.Errorf("arbor: query end byte %d of %d: %w", *qb.endByte, size, ErrOutOfRange)
	}

	r := Range{Start: 0, End: size}
	switch {
	case qb.startByte != nil:
		r.Start = *qb.startByte
	case qb.startPoint != nil:
		r.Start = startAt
	}
	switch {
	case qb.endByte != nil:
		r.End = *qb.endByte
	case qb.endPoint != nil:
		r.End = endAt
	}
	return r, true, nil
}

// Run executes the query under node and returns matches in the order the
// engine reports them. With bounds set, a match is kept when any of its
// captured nodes intersects the window. Predicates such as #eq? and
// #match? are applied.
func (q *Query) Run(node Node, opts ...QueryOption) ([]Match, error) {
	if node.IsZero() {
		return nil, fmt.Errorf("arbor: run query: zero node: %w", ErrInvalidArgument)
	}
	t := node.tree
	if t.Closed() {
		return nil, fmt.Errorf("arbor: run query: %w", ErrTreeClosed)
	}
	if t.grammar != q.grammar && t.grammar.Name() != q.grammar.Name() {
		return nil, fmt.Errorf("arbor: run %s query on %s tree: %w", q.grammar.Name(), t.grammar.Name(), ErrInvalidArgument)
	}
	var qb queryBounds
	for _, opt := range opts {
		opt(&qb)
	}
	window, bounded, err := qb.resolve(t)
	if err != nil {
		return nil, err
	}
	if bounded && window.End < window.Start {
		return nil, fmt.Errorf("arbor: run query: window %s is inverted: %w", window, ErrInvalidArgument)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q.q, t.tsNodes[node.id])

	var out []Match
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, t.source)
		if len(match.Captures) == 0 {
			continue
		}
		m := Match{Pattern: int(match.PatternIndex), Captures: make([]Capture, 0, len(match.Captures))}
		keep := !bounded
		for _, c := range match.Captures {
			n, ok := t.nodeFor(c.Node)
			if !ok {
				continue
			}
			if bounded && n.Range().Intersects(window) {
				keep = true
			}
			m.Captures = append(m.Captures, Capture{Name: q.q.CaptureNameForId(c.Index), Node: n})
		}
		if keep && len(m.Captures) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}
