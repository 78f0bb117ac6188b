package arbor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// SubtreeID identifies a distinct subtree shape within one SubtreeCounter.
type SubtreeID int

// SubtreeStat describes one distinct subtree shape.
type SubtreeStat struct {
	ID     SubtreeID
	Digest string // stable across counters and runs
	Type   string
	Size   int // named nodes in the subtree
	Count  int // occurrences seen
	First  Node
}

// SubtreeCounter hash-conses named subtrees and counts how often each shape
// occurs. A shape is the node type, the text of nodes without named
// children, and the shapes of the named children with their field names.
// Unnamed tokens are ignored, so `f(a,b)` and `f(a, b)` share a shape.
//
// A SubtreeCounter is not safe for concurrent use.
type SubtreeCounter struct {
	ids   map[string]SubtreeID
	stats []SubtreeStat
}

func NewSubtreeCounter() *SubtreeCounter {
	return &SubtreeCounter{ids: make(map[string]SubtreeID)}
}

// AddTree counts every named subtree of t.
func (c *SubtreeCounter) AddTree(t *Tree) SubtreeID {
	return c.Add(t.Root())
}

// Add counts n and each of its named descendants, and returns n's ID. It
// panics if n's tree has been closed.
func (c *SubtreeCounter) Add(n Node) SubtreeID {
	n.tree.mustOpen()
	h := sha256.New()
	fmt.Fprintf(h, "type:%q\n", n.Type())
	size := 1
	children := n.NamedChildren()
	if len(children) == 0 {
		// Leaf ranges come from the parse of this buffer, so on an open
		// tree Text cannot fail.
		text, _ := n.Text()
		fmt.Fprintf(h, "text:%q\n", text)
	}
	for _, child := range children {
		id := c.Add(child)
		st := &c.stats[id]
		size += st.Size
		fmt.Fprintf(h, "child:%q:%s\n", child.Field(), st.Digest)
	}
	digest := hex.EncodeToString(h.Sum(nil))

	if id, ok := c.ids[digest]; ok {
		c.stats[id].Count++
		return id
	}
	id := SubtreeID(len(c.stats))
	c.ids[digest] = id
	c.stats = append(c.stats, SubtreeStat{
		ID:     id,
		Digest: digest,
		Type:   n.Type(),
		Size:   size,
		Count:  1,
		First:  n,
	})
	return id
}

// Len returns the number of distinct shapes seen.
func (c *SubtreeCounter) Len() int { return len(c.stats) }

// Count returns how many times the shape id has been added.
func (c *SubtreeCounter) Count(id SubtreeID) int {
	if int(id) < 0 || int(id) >= len(c.stats) {
		return 0
	}
	return c.stats[id].Count
}

// Stat returns the record for id.
func (c *SubtreeCounter) Stat(id SubtreeID) (SubtreeStat, bool) {
	if int(id) < 0 || int(id) >= len(c.stats) {
		return SubtreeStat{}, false
	}
	return c.stats[id], true
}

// Stats returns every shape in first-seen order.
func (c *SubtreeCounter) Stats() []SubtreeStat {
	out := make([]SubtreeStat, len(c.stats))
	copy(out, c.stats)
	return out
}

// Duplicates returns shapes seen at least minCount times whose size is at
// least minSize, most frequent first, then largest first.
func (c *SubtreeCounter) Duplicates(minCount, minSize int) []SubtreeStat {
	var out []SubtreeStat
	for _, st := range c.stats {
		if st.Count >= minCount && st.Size >= minSize {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].ID < out[j].ID
	})
	return out
}
