package arbor

import (
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree is an immutable syntax tree over one source buffer. Nodes live in a
// flat arena owned by the tree; Node values are handles into it.
//
// A Tree is safe for concurrent reads. Close must not race with readers.
type Tree struct {
	grammar *Grammar
	source  []byte
	lines   lineIndex
	nodes   []nodeData

	// ts and tsNodes back query execution; tsNodes is parallel to nodes.
	ts      *sitter.Tree
	tsNodes []*sitter.Node

	tsIndexOnce sync.Once
	tsIndex     map[tsKey]int32

	digestOnce sync.Once
	digests    [][32]byte

	closed atomic.Bool
}

type tsKey struct {
	start, end uint32
	typ        string
	named      bool
}

// newTree flattens ts into an arena in breadth-first order so that every
// node's children are contiguous. The root is widened to cover the whole
// buffer, since the parser excludes leading and trailing padding from it.
func newTree(g *Grammar, src []byte, ts *sitter.Tree) *Tree {
	t := &Tree{grammar: g, source: src, ts: ts, lines: newLineIndex(src)}
	t.push(ts.RootNode(), -1, "")
	for i := 0; i < len(t.nodes); i++ {
		sn := t.tsNodes[i]
		first := int32(len(t.nodes))
		for c := 0; c < int(sn.ChildCount()); c++ {
			child := sn.Child(c)
			if child == nil {
				continue
			}
			t.push(child, int32(i), sn.FieldNameForChild(c))
		}
		t.nodes[i].first = first
		t.nodes[i].count = int32(len(t.nodes)) - first
	}
	t.nodes[0].bytes = Range{Start: 0, End: uint32(len(src))}
	t.nodes[0].points = PointRange{End: t.lines.point(uint32(len(src)))}
	return t
}

func (t *Tree) push(sn *sitter.Node, parent int32, field string) {
	sp, ep := sn.StartPoint(), sn.EndPoint()
	t.nodes = append(t.nodes, nodeData{
		typ:      sn.Type(),
		field:    field,
		named:    sn.IsNamed(),
		missing:  sn.IsMissing(),
		extra:    sn.IsExtra(),
		hasError: sn.HasError(),
		bytes:    Range{Start: sn.StartByte(), End: sn.EndByte()},
		points: PointRange{
			Start: Point{Row: sp.Row, Column: sp.Column},
			End:   Point{Row: ep.Row, Column: ep.Column},
		},
		parent: parent,
	})
	t.tsNodes = append(t.tsNodes, sn)
}

func (t *Tree) mustOpen() {
	if t.closed.Load() {
		panic(fmt.Errorf("arbor: node access: %w", ErrTreeClosed))
	}
}

// Close releases the parser's tree. Any later use of the tree or its nodes
// panics. Close is idempotent.
func (t *Tree) Close() {
	if t.closed.Swap(true) {
		return
	}
	t.tsNodes = nil
	t.ts.Close()
}

// Closed reports whether Close has been called.
func (t *Tree) Closed() bool { return t.closed.Load() }

// Root returns the root node. Its range always spans the whole source.
func (t *Tree) Root() Node {
	t.mustOpen()
	return Node{tree: t, id: 0}
}

// Grammar returns the grammar the tree was parsed with.
func (t *Tree) Grammar() *Grammar { return t.grammar }

// Source returns the buffer the tree was parsed from. Callers must not
// modify it.
func (t *Tree) Source() []byte { return t.source }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// NodeAt returns the node with the given ID.
func (t *Tree) NodeAt(id int) (Node, bool) {
	t.mustOpen()
	if id < 0 || id >= len(t.nodes) {
		return Node{}, false
	}
	return Node{tree: t, id: int32(id)}, true
}

// PointAt converts a byte offset to a point.
func (t *Tree) PointAt(b uint32) Point { return t.lines.point(b) }

// OffsetAt converts a point to a byte offset, clamping to the buffer.
func (t *Tree) OffsetAt(p Point) uint32 { return t.lines.offset(p) }

// LineCount returns the number of lines in the source.
func (t *Tree) LineCount() int { return t.lines.lines() }

// ErrorCount returns the number of ERROR and MISSING nodes.
func (t *Tree) ErrorCount() int {
	t.mustOpen()
	c := 0
	for i := range t.nodes {
		if t.nodes[i].typ == "ERROR" || t.nodes[i].missing {
			c++
		}
	}
	return c
}

// Walk yields every node in pre-order. The sequence can be ranged over more
// than once.
func (t *Tree) Walk() iter.Seq[Node] {
	return t.Root().Walk()
}

// Walk yields n and its descendants in pre-order.
func (n Node) Walk() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		n.tree.mustOpen()
		stack := []int32{n.id}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(Node{tree: n.tree, id: id}) {
				return
			}
			c := &n.tree.nodes[id]
			for k := c.first + c.count - 1; k >= c.first; k-- {
				stack = append(stack, k)
			}
		}
	}
}

// FindByByte returns the deepest node whose range contains byte offset b.
// Zero-width nodes never contain an offset.
func (t *Tree) FindByByte(b uint32) (Node, error) {
	t.mustOpen()
	if int(b) >= len(t.source) {
		return Node{}, fmt.Errorf("arbor: find byte %d of %d: %w", b, len(t.source), ErrOutOfRange)
	}
	id := int32(0)
	for {
		next, ok := t.childContaining(id, b)
		if !ok {
			return Node{tree: t, id: id}, nil
		}
		id = next
	}
}

// PathTo returns the chain of nodes from the root down to the node that
// FindByByte(b) would return, with the field name of each step.
func (t *Tree) PathTo(b uint32) (*Path, error) {
	t.mustOpen()
	if int(b) >= len(t.source) {
		return nil, fmt.Errorf("arbor: path to byte %d of %d: %w", b, len(t.source), ErrOutOfRange)
	}
	p := &Path{entries: []PathEntry{{Node: Node{tree: t, id: 0}}}}
	id := int32(0)
	for {
		next, ok := t.childContaining(id, b)
		if !ok {
			return p, nil
		}
		p.entries = append(p.entries, PathEntry{
			Node:  Node{tree: t, id: next},
			Field: t.nodes[next].field,
		})
		id = next
	}
}

// childContaining binary searches the children of id, which are sorted and
// non-overlapping, for the one containing b. Zero-width children satisfy
// End <= b and are stepped over.
func (t *Tree) childContaining(id int32, b uint32) (int32, bool) {
	d := &t.nodes[id]
	lo, hi := d.first, d.first+d.count
	for lo < hi {
		mid := lo + (hi-lo)/2
		r := t.nodes[mid].bytes
		switch {
		case r.End <= b:
			lo = mid + 1
		case r.Start > b:
			hi = mid
		default:
			return mid, true
		}
	}
	return 0, false
}

// Cursor returns a cursor at the root.
func (t *Tree) Cursor() *Cursor { return t.Root().Cursor() }

// ToMap serializes the whole tree. See Node.ToMap.
func (t *Tree) ToMap(opts ...SerializeOption) NodeMap { return t.Root().ToMap(opts...) }

func (t *Tree) String() string { return t.Root().String() }

// nodeFor maps a parser node back to its arena node. When several nodes
// share a range and type the outermost wins.
func (t *Tree) nodeFor(sn *sitter.Node) (Node, bool) {
	t.tsIndexOnce.Do(func() {
		t.tsIndex = make(map[tsKey]int32, len(t.tsNodes))
		for i, n := range t.tsNodes {
			k := tsKey{start: n.StartByte(), end: n.EndByte(), typ: n.Type(), named: n.IsNamed()}
			if _, ok := t.tsIndex[k]; !ok {
				t.tsIndex[k] = int32(i)
			}
		}
	})
	id, ok := t.tsIndex[tsKey{start: sn.StartByte(), end: sn.EndByte(), typ: sn.Type(), named: sn.IsNamed()}]
	if !ok {
		return Node{}, false
	}
	return Node{tree: t, id: id}, true
}
