package lsp

import (
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/arbor"
)

// byteOffset converts an LSP position, whose character counts UTF-16 code
// units, to a byte offset in t's source. Positions past the end of a line
// clamp to the line terminator.
func byteOffset(t *arbor.Tree, pos protocol.Position) uint32 {
	src := t.Source()
	b := t.OffsetAt(arbor.Point{Row: uint32(pos.Line)})
	units := uint32(0)
	for int(b) < len(src) && src[b] != '\n' && units < uint32(pos.Character) {
		r, size := utf8.DecodeRune(src[b:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += uint32(n)
		b += uint32(size)
	}
	return b
}

// position converts a byte offset to an LSP position.
func position(t *arbor.Tree, b uint32) protocol.Position {
	p := t.PointAt(b)
	src := t.Source()
	lineStart := t.OffsetAt(arbor.Point{Row: p.Row})
	end := min(lineStart+p.Column, uint32(len(src)))
	units := uint32(0)
	for i := lineStart; i < end; {
		r, size := utf8.DecodeRune(src[i:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += uint32(n)
		i += uint32(size)
	}
	return protocol.Position{Line: protocol.UInteger(p.Row), Character: protocol.UInteger(units)}
}

func lspRange(t *arbor.Tree, r arbor.Range) protocol.Range {
	return protocol.Range{Start: position(t, r.Start), End: position(t, r.End)}
}
