package arbor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest returns the hex SHA-256 structural digest of the subtree at n.
// It covers every node's type and named flag, the text of leaves and the
// ordered digests of all children. Positions do not affect it, so equal
// subtrees at different offsets or in different trees share a digest.
func (n Node) Digest() string {
	d := n.digest()
	return hex.EncodeToString(d[:])
}

func (n Node) digest() [32]byte {
	n.tree.mustOpen()
	return n.tree.subtreeDigests()[n.id]
}

// subtreeDigests computes every node's digest once. Arena order puts
// children after their parent, so a reverse sweep sees children first.
func (t *Tree) subtreeDigests() [][32]byte {
	t.digestOnce.Do(func() {
		t.digests = make([][32]byte, len(t.nodes))
		for id := len(t.nodes) - 1; id >= 0; id-- {
			d := &t.nodes[id]
			h := sha256.New()
			fmt.Fprintf(h, "type:%q named:%t\n", d.typ, d.named)
			if d.count == 0 && int(d.bytes.End) <= len(t.source) {
				fmt.Fprintf(h, "text:%q\n", t.source[d.bytes.Start:d.bytes.End])
			}
			fmt.Fprintf(h, "children:%d\n", d.count)
			for c := d.first; c < d.first+d.count; c++ {
				h.Write(t.digests[c][:])
			}
			h.Sum(t.digests[id][:0])
		}
	})
	return t.digests
}
