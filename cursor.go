package arbor

// Cursor walks a subtree without allocating. It never moves above the node
// it was created at. A Cursor is not safe for concurrent use, and every
// method panics once its tree has been closed.
type Cursor struct {
	tree  *Tree
	root  int32
	cur   int32
	depth int
}

// Node returns the node under the cursor.
func (c *Cursor) Node() Node {
	c.tree.mustOpen()
	return Node{tree: c.tree, id: c.cur}
}

// Field returns the field name of the current node, "" at the cursor root.
func (c *Cursor) Field() string {
	c.tree.mustOpen()
	if c.cur == c.root {
		return ""
	}
	return c.tree.nodes[c.cur].field
}

// Depth returns how far the cursor is below its starting node.
func (c *Cursor) Depth() int { return c.depth }

// Reset moves the cursor to n and makes n its new root.
func (c *Cursor) Reset(n Node) {
	n.tree.mustOpen()
	c.tree, c.root, c.cur, c.depth = n.tree, n.id, n.id, 0
}

// Copy returns an independent cursor at the same position.
func (c *Cursor) Copy() *Cursor {
	cp := *c
	return &cp
}

func (c *Cursor) GotoFirstChild() bool {
	c.tree.mustOpen()
	d := &c.tree.nodes[c.cur]
	if d.count == 0 {
		return false
	}
	c.cur = d.first
	c.depth++
	return true
}

// GotoFirstChildForByte moves to the first child whose range ends after b
// and returns its index.
func (c *Cursor) GotoFirstChildForByte(b uint32) (int, bool) {
	c.tree.mustOpen()
	d := &c.tree.nodes[c.cur]
	for i := int32(0); i < d.count; i++ {
		if c.tree.nodes[d.first+i].bytes.End > b {
			c.cur = d.first + i
			c.depth++
			return int(i), true
		}
	}
	return -1, false
}

func (c *Cursor) GotoNextSibling() bool {
	c.tree.mustOpen()
	if c.cur == c.root {
		return false
	}
	p := &c.tree.nodes[c.tree.nodes[c.cur].parent]
	if c.cur+1 >= p.first+p.count {
		return false
	}
	c.cur++
	return true
}

func (c *Cursor) GotoPrevSibling() bool {
	c.tree.mustOpen()
	if c.cur == c.root {
		return false
	}
	p := &c.tree.nodes[c.tree.nodes[c.cur].parent]
	if c.cur-1 < p.first {
		return false
	}
	c.cur--
	return true
}

func (c *Cursor) GotoParent() bool {
	c.tree.mustOpen()
	if c.cur == c.root {
		return false
	}
	c.cur = c.tree.nodes[c.cur].parent
	c.depth--
	return true
}
