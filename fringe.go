package arbor

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FringeKind classifies a FringeElement.
type FringeKind int

const (
	// FringeLeaf is a childless, non-comment node.
	FringeLeaf FringeKind = iota
	FringeComment
	// FringeWhitespace is a run of whitespace. It is either a gap between
	// nodes or a leaf whose text is all whitespace.
	FringeWhitespace
	// FringeUnparsed is a gap between nodes that holds non-whitespace bytes
	// no node claims.
	FringeUnparsed
)

func (k FringeKind) String() string {
	switch k {
	case FringeLeaf:
		return "leaf"
	case FringeComment:
		return "comment"
	case FringeWhitespace:
		return "whitespace"
	case FringeUnparsed:
		return "unparsed"
	}
	return fmt.Sprintf("FringeKind(%d)", int(k))
}

// FringeElement is one piece of the ordered cover of a source buffer.
// Node is zero for synthesized gaps. Type is set only when requested.
type FringeElement struct {
	Kind  FringeKind
	Range Range
	Type  string
	Node  Node
}

// FringeOptions selects what Fringe yields.
type FringeOptions struct {
	Nodes      bool // leaves and unparsed gaps
	Types      bool // fill FringeElement.Type
	Comments   bool
	Whitespace bool
}

// isComment reports whether a node type names a comment in any of the
// shipped grammars (comment, line_comment, block_comment, ...).
func isComment(typ string) bool {
	return strings.Contains(typ, "comment")
}

func isBlank(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if !unicode.IsSpace(r) {
			return false
		}
		b = b[size:]
	}
	return true
}

// Fringe yields the leaves of the tree in source order. A comment counts as
// a single element even if its grammar gives it children, and zero-width
// nodes are skipped. Bytes between elements are yielded as whitespace or
// unparsed gaps, so with every option on the ranges tile the source
// exactly. The sequence is lazy and can be ranged over repeatedly.
func (t *Tree) Fringe(opts FringeOptions) iter.Seq[FringeElement] {
	return func(yield func(FringeElement) bool) {
		t.mustOpen()
		pos := uint32(0)
		emitGap := func(end uint32) bool {
			if end <= pos {
				return true
			}
			r := Range{Start: pos, End: end}
			pos = end
			kind := FringeUnparsed
			if isBlank(t.source[r.Start:r.End]) {
				kind = FringeWhitespace
			}
			if !t.wantFringe(kind, opts) {
				return true
			}
			return yield(FringeElement{Kind: kind, Range: r})
		}

		stack := []int32{0}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			d := &t.nodes[id]
			comment := isComment(d.typ) && id != 0
			if d.count > 0 && !comment {
				for k := d.first + d.count - 1; k >= d.first; k-- {
					stack = append(stack, k)
				}
				continue
			}
			if d.bytes.Empty() || d.bytes.Start < pos {
				continue
			}
			if !emitGap(d.bytes.Start) {
				return
			}
			pos = d.bytes.End
			kind := FringeLeaf
			switch {
			case comment:
				kind = FringeComment
			case isBlank(t.source[d.bytes.Start:d.bytes.End]):
				kind = FringeWhitespace
			}
			if !t.wantFringe(kind, opts) {
				continue
			}
			e := FringeElement{Kind: kind, Range: d.bytes, Node: Node{tree: t, id: id}}
			if opts.Types {
				e.Type = d.typ
			}
			if !yield(e) {
				return
			}
		}
		emitGap(uint32(len(t.source)))
	}
}

func (t *Tree) wantFringe(k FringeKind, opts FringeOptions) bool {
	switch k {
	case FringeComment:
		return opts.Comments
	case FringeWhitespace:
		return opts.Whitespace
	}
	return opts.Nodes
}
