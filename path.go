package arbor

import "strings"

// PathEntry is one step of a Path: a node and the field under which its
// parent holds it. The root's field is "".
type PathEntry struct {
	Node  Node
	Field string
}

// Path is the chain of nodes from the root down to a target node. Index 0
// is the root and the last entry is the target.
type Path struct {
	entries []PathEntry
}

// Len returns the number of entries.
func (p *Path) Len() int { return len(p.entries) }

// At returns entry i. It panics if i is out of range.
func (p *Path) At(i int) PathEntry { return p.entries[i] }

// Entries returns a copy of the entries, root first.
func (p *Path) Entries() []PathEntry {
	out := make([]PathEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Nodes returns the nodes of the path, root first.
func (p *Path) Nodes() []Node {
	out := make([]Node, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Node
	}
	return out
}

func (p *Path) Root() Node   { return p.entries[0].Node }
func (p *Path) Target() Node { return p.entries[len(p.entries)-1].Node }

func (p *Path) String() string {
	parts := make([]string, len(p.entries))
	for i, e := range p.entries {
		if e.Field != "" {
			parts[i] = e.Field + ":" + e.Node.Type()
		} else {
			parts[i] = e.Node.Type()
		}
	}
	return strings.Join(parts, " > ")
}

// PathOption narrows a Path lookup.
type PathOption func(*pathScope)

type pathScope struct {
	before    Node
	hasBefore bool
}

// Before limits a lookup to entries strictly above n. If n is not on the
// path, no limit applies.
func Before(n Node) PathOption {
	return func(s *pathScope) {
		s.before = n
		s.hasBefore = true
	}
}

// limit returns the exclusive upper index a lookup may examine.
func (p *Path) limit(opts []PathOption) int {
	var s pathScope
	for _, opt := range opts {
		opt(&s)
	}
	if !s.hasBefore {
		return len(p.entries)
	}
	for i, e := range p.entries {
		if e.Node == s.before {
			return i
		}
	}
	return len(p.entries)
}

// FindIndexByType returns the index of the first entry, scanning from the
// root, whose node has type typ.
func (p *Path) FindIndexByType(typ string, opts ...PathOption) (int, bool) {
	end := p.limit(opts)
	for i := 0; i < end; i++ {
		if p.entries[i].Node.Type() == typ {
			return i, true
		}
	}
	return -1, false
}

// FindByType is FindIndexByType returning the node itself.
func (p *Path) FindByType(typ string, opts ...PathOption) (Node, bool) {
	i, ok := p.FindIndexByType(typ, opts...)
	if !ok {
		return Node{}, false
	}
	return p.entries[i].Node, true
}

// RIndexByType returns the index of the last entry, scanning from the
// target up, whose node has type typ. This is the nearest enclosing node of
// that type.
func (p *Path) RIndexByType(typ string, opts ...PathOption) (int, bool) {
	for i := p.limit(opts) - 1; i >= 0; i-- {
		if p.entries[i].Node.Type() == typ {
			return i, true
		}
	}
	return -1, false
}

// RIndexByField returns the index of the last entry held under field.
func (p *Path) RIndexByField(field string, opts ...PathOption) (int, bool) {
	for i := p.limit(opts) - 1; i >= 0; i-- {
		if p.entries[i].Field == field {
			return i, true
		}
	}
	return -1, false
}
