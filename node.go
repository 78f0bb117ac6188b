package arbor

import (
	"fmt"
	"strings"
)

// nodeData is one arena slot. Children of a node occupy the contiguous id
// range [first, first+count), which keeps sibling moves to index arithmetic.
type nodeData struct {
	typ      string
	field    string
	named    bool
	missing  bool
	extra    bool
	hasError bool
	bytes    Range
	points   PointRange
	parent   int32
	first    int32
	count    int32
}

// Node is a lightweight handle to one node of a Tree. Handles are plain
// values: two Nodes are == when they refer to the same node of the same tree.
// The zero Node refers to nothing.
type Node struct {
	tree *Tree
	id   int32
}

// IsZero reports whether n refers to no node.
func (n Node) IsZero() bool { return n.tree == nil }

// Equal reports whether n and o are the same node of the same tree. It is
// identity, not structural equality; compare Digest for the latter.
func (n Node) Equal(o Node) bool { return n == o }

// Tree returns the tree that owns n.
func (n Node) Tree() *Tree { return n.tree }

// ID returns the node's index in its tree. IDs are stable for the life of
// the tree and can be turned back into a Node with Tree.NodeAt.
func (n Node) ID() int { return int(n.id) }

func (n Node) data() *nodeData {
	n.tree.mustOpen()
	return &n.tree.nodes[n.id]
}

func (n Node) Type() string { return n.data().typ }
func (n Node) IsNamed() bool { return n.data().named }
func (n Node) IsMissing() bool { return n.data().missing }
func (n Node) IsExtra() bool { return n.data().extra }
func (n Node) HasError() bool { return n.data().hasError }
func (n Node) IsError() bool { return n.data().typ == "ERROR" }
func (n Node) Range() Range { return n.data().bytes }
func (n Node) StartByte() uint32 { return n.data().bytes.Start }
func (n Node) EndByte() uint32 { return n.data().bytes.End }

// PointRange returns the node's start and end as rows and columns.
func (n Node) PointRange() PointRange { return n.data().points }
func (n Node) StartPoint() Point { return n.data().points.Start }
func (n Node) EndPoint() Point { return n.data().points.End }

// Field returns the field name under which n's parent holds it, or "" if
// the parent does not name it.
func (n Node) Field() string { return n.data().field }

// Parent returns n's parent. The root has none.
func (n Node) Parent() (Node, bool) {
	p := n.data().parent
	if p < 0 {
		return Node{}, false
	}
	return Node{tree: n.tree, id: p}, true
}

// Parents returns the ancestors of n, nearest first, ending with the root.
func (n Node) Parents() []Node {
	var out []Node
	for p, ok := n.Parent(); ok; p, ok = p.Parent() {
		out = append(out, p)
	}
	return out
}

// Index returns n's position among its parent's children. The root is 0.
func (n Node) Index() int {
	d := n.data()
	if d.parent < 0 {
		return 0
	}
	return int(n.id - n.tree.nodes[d.parent].first)
}

// ChildCount returns the number of children, named and unnamed.
func (n Node) ChildCount() int { return int(n.data().count) }

// Child returns the i-th child.
func (n Node) Child(i int) (Node, bool) {
	d := n.data()
	if i < 0 || i >= int(d.count) {
		return Node{}, false
	}
	return Node{tree: n.tree, id: d.first + int32(i)}, true
}

// Children returns every child of n in source order, named and unnamed.
// The slice is freshly allocated.
func (n Node) Children() []Node {
	d := n.data()
	out := make([]Node, d.count)
	for i := range out {
		out[i] = Node{tree: n.tree, id: d.first + int32(i)}
	}
	return out
}

// NamedChildren returns the named children of n in source order.
func (n Node) NamedChildren() []Node {
	d := n.data()
	var out []Node
	for id := d.first; id < d.first+d.count; id++ {
		if n.tree.nodes[id].named {
			out = append(out, Node{tree: n.tree, id: id})
		}
	}
	return out
}

// NamedChildCount returns the number of named children.
func (n Node) NamedChildCount() int {
	d := n.data()
	c := 0
	for id := d.first; id < d.first+d.count; id++ {
		if n.tree.nodes[id].named {
			c++
		}
	}
	return c
}

// NamedChild returns the i-th named child.
func (n Node) NamedChild(i int) (Node, bool) {
	if i < 0 {
		return Node{}, false
	}
	d := n.data()
	for id := d.first; id < d.first+d.count; id++ {
		if !n.tree.nodes[id].named {
			continue
		}
		if i == 0 {
			return Node{tree: n.tree, id: id}, true
		}
		i--
	}
	return Node{}, false
}

func (n Node) FirstChild() (Node, bool) { return n.Child(0) }
func (n Node) LastChild() (Node, bool)  { return n.Child(n.ChildCount() - 1) }

func (n Node) FirstNamedChild() (Node, bool) { return n.NamedChild(0) }

func (n Node) LastNamedChild() (Node, bool) {
	d := n.data()
	for id := d.first + d.count - 1; id >= d.first; id-- {
		if n.tree.nodes[id].named {
			return Node{tree: n.tree, id: id}, true
		}
	}
	return Node{}, false
}

// ChildByField returns the first child held under field.
func (n Node) ChildByField(field string) (Node, bool) {
	d := n.data()
	for id := d.first; id < d.first+d.count; id++ {
		if n.tree.nodes[id].field == field {
			return Node{tree: n.tree, id: id}, true
		}
	}
	return Node{}, false
}

func (n Node) NextSibling() (Node, bool) {
	p, ok := n.Parent()
	if !ok {
		return Node{}, false
	}
	return p.Child(n.Index() + 1)
}

func (n Node) PrevSibling() (Node, bool) {
	p, ok := n.Parent()
	if !ok {
		return Node{}, false
	}
	return p.Child(n.Index() - 1)
}

// Text returns the source bytes covered by n. An empty node yields "".
// ErrOutOfBounds is returned if the node's range exceeds the buffer or the
// tree has been closed.
func (n Node) Text() (string, error) {
	if n.tree != nil && n.tree.Closed() {
		return "", fmt.Errorf("arbor: text: %w: %w", ErrOutOfBounds, ErrTreeClosed)
	}
	r := n.Range()
	if r.Empty() {
		return "", nil
	}
	if int(r.End) > len(n.tree.source) {
		return "", fmt.Errorf("arbor: text of %s %s: %w", n.Type(), r, ErrOutOfBounds)
	}
	return string(n.tree.source[r.Start:r.End]), nil
}

// Cursor returns a cursor positioned at n. The cursor cannot move above n.
func (n Node) Cursor() *Cursor {
	n.tree.mustOpen()
	return &Cursor{tree: n.tree, root: n.id, cur: n.id}
}

// String renders n as an S-expression of named nodes with field labels.
func (n Node) String() string {
	if n.IsZero() {
		return "<nil>"
	}
	var sb strings.Builder
	n.writeSexp(&sb)
	return sb.String()
}

func (n Node) writeSexp(sb *strings.Builder) {
	d := n.data()
	sb.WriteByte('(')
	if d.missing {
		sb.WriteString("MISSING ")
	}
	sb.WriteString(d.typ)
	for id := d.first; id < d.first+d.count; id++ {
		c := n.tree.nodes[id]
		if !c.named {
			continue
		}
		sb.WriteByte(' ')
		if c.field != "" {
			sb.WriteString(c.field)
			sb.WriteString(": ")
		}
		Node{tree: n.tree, id: id}.writeSexp(sb)
	}
	sb.WriteByte(')')
}
