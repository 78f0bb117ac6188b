package pretty

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jward/arbor"
)

// Snippet quotes s for single-line display, cutting it to at most width
// runes with a trailing ellipsis.
func Snippet(s string, width int) string {
	q := strconv.Quote(s)
	if width <= 0 || utf8.RuneCountInString(q) <= width {
		return q
	}
	if width <= 3 {
		return strings.Repeat(".", width)
	}
	runes := []rune(q)
	return string(runes[:width-3]) + "..."
}

// TreeOptions controls RenderTree.
type TreeOptions struct {
	Unnamed bool // include anonymous nodes
	Width   int  // line width used to cut leaf text; 0 means no text
}

// RenderTree writes an indented outline of the subtree at n, one node per
// line with its field, type and range. Leaves show their text.
func RenderTree(w io.Writer, s *Styles, n arbor.Node, opts TreeOptions) error {
	cur := n.Cursor()
	for {
		node := cur.Node()
		if opts.Unnamed || node.IsNamed() {
			if err := writeTreeLine(w, s, cur, opts); err != nil {
				return err
			}
		}
		if cur.GotoFirstChild() {
			continue
		}
		for !cur.GotoNextSibling() {
			if !cur.GotoParent() {
				return nil
			}
		}
	}
}

func writeTreeLine(w io.Writer, s *Styles, cur *arbor.Cursor, opts TreeOptions) error {
	node := cur.Node()
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", cur.Depth()))
	if f := cur.Field(); f != "" {
		sb.WriteString(s.Field.Render(f + ":"))
		sb.WriteByte(' ')
	}
	switch {
	case node.IsError() || node.IsMissing():
		sb.WriteString(s.Error.Render(node.Type()))
	case node.IsNamed():
		sb.WriteString(s.NodeType.Render(node.Type()))
	default:
		sb.WriteString(s.Anon.Render(strconv.Quote(node.Type())))
	}
	sb.WriteByte(' ')
	sb.WriteString(s.Range.Render(fmt.Sprintf("%s-%s", node.StartPoint(), node.EndPoint())))
	if opts.Width > 0 && node.ChildCount() == 0 && node.IsNamed() {
		if text, err := node.Text(); err == nil {
			room := opts.Width - utf8.RuneCountInString(sb.String()) - 1
			sb.WriteByte(' ')
			sb.WriteString(s.Text.Render(Snippet(text, max(room, 8))))
		}
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderDiff writes one line per record: the marker, node type, position
// and a snippet of the affected text.
func RenderDiff(w io.Writer, s *Styles, records []arbor.DiffRecord, width int) error {
	for _, r := range records {
		style := s.DiffEqual
		node := r.New
		switch r.Op {
		case arbor.DiffInserted:
			style = s.DiffAdd
		case arbor.DiffRemoved:
			style = s.DiffRemove
			node = r.Old
		case arbor.DiffChanged:
			style = s.DiffChange
		}
		depth := len(node.Parents())
		head := fmt.Sprintf("%s %s%s %s", r.Op.Symbol(), strings.Repeat("  ", depth), node.Type(), node.StartPoint())
		if r.Op == arbor.DiffChanged {
			head = fmt.Sprintf("%s %s%s %s -> %s", r.Op.Symbol(), strings.Repeat("  ", depth), node.Type(), r.Old.StartPoint(), r.New.StartPoint())
		}
		line := head
		if r.Op != arbor.DiffChanged || node.ChildCount() == 0 {
			if text, err := node.Text(); err == nil {
				line += " " + Snippet(text, max(width-utf8.RuneCountInString(head)-1, 8))
			}
		}
		if _, err := fmt.Fprintln(w, style.Render(line)); err != nil {
			return err
		}
	}
	return nil
}
