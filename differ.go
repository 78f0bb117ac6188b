package arbor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DiffOp classifies a DiffRecord.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffInserted
	DiffRemoved
	DiffChanged
)

func (op DiffOp) String() string {
	switch op {
	case DiffEqual:
		return "equal"
	case DiffInserted:
		return "inserted"
	case DiffRemoved:
		return "removed"
	case DiffChanged:
		return "changed"
	}
	return fmt.Sprintf("DiffOp(%d)", int(op))
}

// Symbol returns the one-character marker used in unified output.
func (op DiffOp) Symbol() string {
	switch op {
	case DiffInserted:
		return "+"
	case DiffRemoved:
		return "-"
	case DiffChanged:
		return "~"
	}
	return "="
}

func (op DiffOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

// DiffRecord is one edit. Removed records carry only Old, Inserted records
// only New; Equal and Changed carry both. A record stands for the whole
// subtree under its node(s).
type DiffRecord struct {
	Op  DiffOp
	Old Node
	New Node
}

func (r DiffRecord) String() string {
	switch r.Op {
	case DiffInserted:
		return fmt.Sprintf("+ %s %s", r.New.Type(), r.New.Range())
	case DiffRemoved:
		return fmt.Sprintf("- %s %s", r.Old.Type(), r.Old.Range())
	}
	return fmt.Sprintf("%s %s %s -> %s", r.Op.Symbol(), r.Old.Type(), r.Old.Range(), r.New.Range())
}

type diffSide struct {
	Type  string `json:"type"`
	Range Range  `json:"range"`
	Start Point  `json:"start"`
}

func (r DiffRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		Op  DiffOp    `json:"op"`
		Old *diffSide `json:"old,omitempty"`
		New *diffSide `json:"new,omitempty"`
	}{Op: r.Op}
	if !r.Old.IsZero() {
		out.Old = &diffSide{Type: r.Old.Type(), Range: r.Old.Range(), Start: r.Old.StartPoint()}
	}
	if !r.New.IsZero() {
		out.New = &diffSide{Type: r.New.Type(), Range: r.New.Range(), Start: r.New.StartPoint()}
	}
	return json.Marshal(out)
}

// DiffOption configures Diff.
type DiffOption func(*differ)

// OutputEqual makes Diff emit an Equal record for every matched subtree.
func OutputEqual(on bool) DiffOption {
	return func(d *differ) { d.outputEqual = on }
}

// Diff compares two subtrees. old and new may each be a *Tree or a Node.
// Records are ordered by position, a Changed parent before the records for
// its children. Diffing a subtree with itself yields no records
// unless OutputEqual is set, and Diff(b, a) mirrors Diff(a, b) with
// Inserted and Removed swapped.
func Diff(old, new any, opts ...DiffOption) ([]DiffRecord, error) {
	a, err := diffOperand("old", old)
	if err != nil {
		return nil, err
	}
	b, err := diffOperand("new", new)
	if err != nil {
		return nil, err
	}
	d := &differ{}
	for _, opt := range opts {
		opt(d)
	}
	d.pair(a, b)
	return d.out, nil
}

// DiffTrees is Diff over two whole trees.
func DiffTrees(old, new *Tree, opts ...DiffOption) ([]DiffRecord, error) {
	return Diff(old, new, opts...)
}

// DiffNodes is Diff over two nodes.
func DiffNodes(old, new Node, opts ...DiffOption) ([]DiffRecord, error) {
	return Diff(old, new, opts...)
}

func diffOperand(side string, v any) (Node, error) {
	switch x := v.(type) {
	case *Tree:
		if x == nil {
			break
		}
		if x.Closed() {
			return Node{}, fmt.Errorf("arbor: diff %s: %w", side, ErrTreeClosed)
		}
		return x.Root(), nil
	case Node:
		if x.IsZero() {
			break
		}
		if x.tree.Closed() {
			return Node{}, fmt.Errorf("arbor: diff %s: %w", side, ErrTreeClosed)
		}
		return x, nil
	}
	return Node{}, fmt.Errorf("arbor: diff %s: %T is not a tree or node: %w", side, v, ErrInvalidArgument)
}

type differ struct {
	outputEqual bool
	out         []DiffRecord
}

func (d *differ) emit(op DiffOp, a, b Node) {
	d.out = append(d.out, DiffRecord{Op: op, Old: a, New: b})
}

func sameKind(a, b Node) bool {
	return a.Type() == b.Type() && a.IsNamed() == b.IsNamed()
}

// pair compares two nodes that occupy the same position.
func (d *differ) pair(a, b Node) {
	switch {
	case a.digest() == b.digest():
		if d.outputEqual {
			d.emit(DiffEqual, a, b)
		}
	case sameKind(a, b):
		d.emit(DiffChanged, a, b)
		d.align(a.Children(), b.Children())
	default:
		d.emit(DiffRemoved, a, Node{})
		d.emit(DiffInserted, Node{}, b)
	}
}

// align matches two sibling lists around their longest common run of
// structurally equal nodes, then recurses on the pieces either side.
func (d *differ) align(old, new []Node) {
	if len(old) == 0 && len(new) == 0 {
		return
	}
	i, j, n := longestRun(old, new)
	if n == 0 {
		d.gap(old, new)
		return
	}
	d.align(old[:i], new[:j])
	for k := 0; k < n; k++ {
		if d.outputEqual {
			d.emit(DiffEqual, old[i+k], new[j+k])
		}
	}
	d.align(old[i+n:], new[j+n:])
}

// gap pairs up siblings that share no equal run, position by position.
func (d *differ) gap(old, new []Node) {
	k := 0
	for ; k < len(old) && k < len(new); k++ {
		if sameKind(old[k], new[k]) {
			d.pair(old[k], new[k])
			continue
		}
		d.emit(DiffRemoved, old[k], Node{})
		d.emit(DiffInserted, Node{}, new[k])
	}
	for _, a := range old[k:] {
		d.emit(DiffRemoved, a, Node{})
	}
	for _, b := range new[k:] {
		d.emit(DiffInserted, Node{}, b)
	}
}

// longestRun finds the longest run old[i:i+n] equal to new[j:j+n] by
// digest. Among runs of equal length it prefers the smallest i+j, then the
// run whose digest sequence sorts first, then the smallest i. Each rule is
// invariant under swapping old and new, which keeps Diff symmetric.
func longestRun(old, new []Node) (bi, bj, bn int) {
	od := make([][32]byte, len(old))
	for i, n := range old {
		od[i] = n.digest()
	}
	nd := make([][32]byte, len(new))
	for j, n := range new {
		nd[j] = n.digest()
	}
	index := make(map[[32]byte][]int, len(od))
	for i, h := range od {
		index[h] = append(index[h], i)
	}

	// prev[i] is the length of the run ending at old[i], new[j-1].
	prev := map[int]int{}
	for j, h := range nd {
		cur := make(map[int]int, len(index[h]))
		for _, i := range index[h] {
			n := prev[i-1] + 1
			cur[i] = n
			si, sj := i-n+1, j-n+1
			if bn == 0 || runBetter(n, si, sj, bn, bi, bj, od) {
				bi, bj, bn = si, sj, n
			}
		}
		prev = cur
	}
	return bi, bj, bn
}

func runBetter(n, i, j, bn, bi, bj int, od [][32]byte) bool {
	if n != bn {
		return n > bn
	}
	if i+j != bi+bj {
		return i+j < bi+bj
	}
	for k := 0; k < n; k++ {
		if c := bytes.Compare(od[i+k][:], od[bi+k][:]); c != 0 {
			return c < 0
		}
	}
	return i < bi
}
