package runtime

import (
	"context"
	"os"
	"sync"

	"github.com/risor-io/risor/object"

	"github.com/jward/arbor"
)

// treeStore holds the trees a script has parsed. Scripts never see a
// *arbor.Tree; trees and nodes cross into Risor as maps carrying the
// tree's handle and the node's arena id.
type treeStore struct {
	mu    sync.Mutex
	next  int64
	trees map[int64]*arbor.Tree
}

func newTreeStore() *treeStore {
	return &treeStore{trees: make(map[int64]*arbor.Tree)}
}

func (s *treeStore) add(t *arbor.Tree) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.trees[s.next] = t
	return s.next
}

func (s *treeStore) get(h int64) (*arbor.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[h]
	return t, ok
}

func (s *treeStore) close(h int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[h]
	if ok {
		t.Close()
		delete(s.trees, h)
	}
	return ok
}

func (s *treeStore) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.trees {
		t.Close()
		delete(s.trees, h)
	}
}

type hostFuncs struct {
	registry *arbor.Registry
	trees    *treeStore
}

func treeObject(h int64, t *arbor.Tree) object.Object {
	return object.NewMap(map[string]object.Object{
		"tree":    object.NewInt(h),
		"grammar": object.NewString(t.Grammar().Name()),
		"len":     object.NewInt(int64(t.Len())),
		"lines":   object.NewInt(int64(t.LineCount())),
		"errors":  object.NewInt(int64(t.ErrorCount())),
	})
}

func nodeObject(h int64, n arbor.Node) object.Object {
	if n.IsZero() {
		return object.Nil
	}
	sp, ep := n.StartPoint(), n.EndPoint()
	return object.NewMap(map[string]object.Object{
		"tree":        object.NewInt(h),
		"id":          object.NewInt(int64(n.ID())),
		"type":        object.NewString(n.Type()),
		"named":       object.NewBool(n.IsNamed()),
		"missing":     object.NewBool(n.IsMissing()),
		"field":       object.NewString(n.Field()),
		"start_byte":  object.NewInt(int64(n.StartByte())),
		"end_byte":    object.NewInt(int64(n.EndByte())),
		"start_row":   object.NewInt(int64(sp.Row)),
		"start_col":   object.NewInt(int64(sp.Column)),
		"end_row":     object.NewInt(int64(ep.Row)),
		"end_col":     object.NewInt(int64(ep.Column)),
		"child_count": object.NewInt(int64(n.ChildCount())),
	})
}

func nodeList(h int64, nodes []arbor.Node) object.Object {
	out := make([]object.Object, len(nodes))
	for i, n := range nodes {
		out[i] = nodeObject(h, n)
	}
	return object.NewList(out)
}

// resolveTree accepts a tree or node map and returns its tree.
func (hf *hostFuncs) resolveTree(obj object.Object) (int64, *arbor.Tree, error) {
	m, err := extractMap(obj)
	if err != nil {
		return 0, nil, err
	}
	h, ok := getOptionalInt64(m, "tree")
	if !ok {
		return 0, nil, errNotTree
	}
	t, ok := hf.trees.get(h)
	if !ok {
		return 0, nil, errClosedTree
	}
	return h, t, nil
}

// resolveNode accepts a node map, or a tree map meaning its root.
func (hf *hostFuncs) resolveNode(obj object.Object) (int64, arbor.Node, error) {
	h, t, err := hf.resolveTree(obj)
	if err != nil {
		return 0, arbor.Node{}, err
	}
	m, _ := extractMap(obj)
	id, ok := getOptionalInt64(m, "id")
	if !ok {
		return h, t.Root(), nil
	}
	n, ok := t.NodeAt(int(id))
	if !ok {
		return 0, arbor.Node{}, errBadNode
	}
	return h, n, nil
}

// parse(path [, grammar]) → tree
//
// Without a grammar the file extension decides.
func (hf *hostFuncs) parse() *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("parse", 1, 2, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse: path: %v", err)
		}
		var grammar string
		if len(args) == 2 {
			if grammar, err = toString(args[1]); err != nil {
				return object.Errorf("parse: grammar: %v", err)
			}
		} else if grammar, err = hf.registry.Resolve(path); err != nil {
			return object.Errorf("parse: %v", err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return hf.parseBytes(ctx, src, grammar)
	})
}

// parse_src(source, grammar) → tree
func (hf *hostFuncs) parseSrc() *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("parse_src: source: %v", err)
		}
		grammar, err := toString(args[1])
		if err != nil {
			return object.Errorf("parse_src: grammar: %v", err)
		}
		return hf.parseBytes(ctx, []byte(src), grammar)
	})
}

func (hf *hostFuncs) parseBytes(ctx context.Context, src []byte, grammar string) object.Object {
	t, err := hf.registry.Parse(ctx, grammar, src)
	if err != nil {
		return object.Errorf("parse: %v", err)
	}
	return treeObject(hf.trees.add(t), t)
}

// close_tree(tree) → bool
func (hf *hostFuncs) closeTree() *object.Builtin {
	return object.NewBuiltin("close_tree", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("close_tree", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("close_tree: %v", err)
		}
		return object.NewBool(hf.trees.close(getInt64(m, "tree")))
	})
}

// root(tree) → node
func (hf *hostFuncs) root() *object.Builtin {
	return object.NewBuiltin("root", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("root", 1, len(args))
		}
		h, t, err := hf.resolveTree(args[0])
		if err != nil {
			return object.Errorf("root: %v", err)
		}
		return nodeObject(h, t.Root())
	})
}

// children(node) → [node], named_children(node) → [node]
func (hf *hostFuncs) children(named bool) *object.Builtin {
	name := "children"
	if named {
		name = "named_children"
	}
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		h, n, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		if named {
			return nodeList(h, n.NamedChildren())
		}
		return nodeList(h, n.Children())
	})
}

// parent(node) → node or nil
func (hf *hostFuncs) parent() *object.Builtin {
	return object.NewBuiltin("parent", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parent", 1, len(args))
		}
		h, n, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("parent: %v", err)
		}
		p, ok := n.Parent()
		if !ok {
			return object.Nil
		}
		return nodeObject(h, p)
	})
}

// node_child(node, field) → node or nil
func (hf *hostFuncs) nodeChild() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		h, n, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		c, ok := n.ChildByField(field)
		if !ok {
			return object.Nil
		}
		return nodeObject(h, c)
	})
}

// node_text(node) → string
func (hf *hostFuncs) nodeText() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		_, n, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("node_text: %v", err)
		}
		text, err := n.Text()
		if err != nil {
			return object.Errorf("node_text: %v", err)
		}
		return object.NewString(text)
	})
}

// find_by_byte(tree, offset) → node
func (hf *hostFuncs) findByByte() *object.Builtin {
	return object.NewBuiltin("find_by_byte", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("find_by_byte", 2, len(args))
		}
		h, t, err := hf.resolveTree(args[0])
		if err != nil {
			return object.Errorf("find_by_byte: %v", err)
		}
		b, err := toOffset(args[1])
		if err != nil {
			return object.Errorf("find_by_byte: %v", err)
		}
		n, err := t.FindByByte(b)
		if err != nil {
			return object.Errorf("find_by_byte: %v", err)
		}
		return nodeObject(h, n)
	})
}

// path_to(tree, offset) → [node], root first
func (hf *hostFuncs) pathTo() *object.Builtin {
	return object.NewBuiltin("path_to", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("path_to", 2, len(args))
		}
		h, t, err := hf.resolveTree(args[0])
		if err != nil {
			return object.Errorf("path_to: %v", err)
		}
		b, err := toOffset(args[1])
		if err != nil {
			return object.Errorf("path_to: %v", err)
		}
		p, err := t.PathTo(b)
		if err != nil {
			return object.Errorf("path_to: %v", err)
		}
		return nodeList(h, p.Nodes())
	})
}

// query(pattern, node [, {start_byte, end_byte}]) → [{capture: node}]
//
// When a capture name occurs more than once in a match the last node wins.
func (hf *hostFuncs) query() *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.NewArgsRangeError("query", 2, 3, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		h, n, err := hf.resolveNode(args[1])
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		var opts []arbor.QueryOption
		if len(args) == 3 {
			m, err := extractMap(args[2])
			if err != nil {
				return object.Errorf("query: options: %v", err)
			}
			if v, ok := getOptionalInt64(m, "start_byte"); ok {
				opts = append(opts, arbor.StartByte(uint32(v)))
			}
			if v, ok := getOptionalInt64(m, "end_byte"); ok {
				opts = append(opts, arbor.EndByte(uint32(v)))
			}
		}

		q, err := arbor.NewQuery(n.Tree().Grammar(), pattern)
		if err != nil {
			return object.Errorf("query: %v", err)
		}
		defer q.Close()
		matches, err := q.Run(n, opts...)
		if err != nil {
			return object.Errorf("query: %v", err)
		}

		results := make([]object.Object, 0, len(matches))
		for _, match := range matches {
			mm := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				mm[c.Name] = nodeObject(h, c.Node)
			}
			results = append(results, object.NewMap(mm))
		}
		return object.NewList(results)
	})
}

// tokens(tree [, {whitespace, comments}]) → [{kind, type, text, start_byte, end_byte}]
func (hf *hostFuncs) tokens() *object.Builtin {
	return object.NewBuiltin("tokens", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("tokens", 1, 2, len(args))
		}
		_, t, err := hf.resolveTree(args[0])
		if err != nil {
			return object.Errorf("tokens: %v", err)
		}
		var opts []arbor.TokenizeOption
		if len(args) == 2 {
			m, err := extractMap(args[1])
			if err != nil {
				return object.Errorf("tokens: options: %v", err)
			}
			if _, ok := m["whitespace"]; ok {
				opts = append(opts, arbor.IgnoreWhitespace(!getBool(m, "whitespace")))
			}
			if _, ok := m["comments"]; ok {
				opts = append(opts, arbor.IgnoreComments(!getBool(m, "comments")))
			}
		}
		results := []object.Object{}
		for tok := range t.Tokenize(opts...) {
			results = append(results, object.NewMap(map[string]object.Object{
				"kind":       object.NewString(tok.Kind.String()),
				"type":       object.NewString(tok.Type),
				"text":       object.NewString(tok.Text()),
				"start_byte": object.NewInt(int64(tok.Range.Start)),
				"end_byte":   object.NewInt(int64(tok.Range.End)),
			}))
		}
		return object.NewList(results)
	})
}

// fringe(tree [, {comments, whitespace}]) → [{kind, type, start_byte, end_byte, node}]
//
// Leaves and unparsed gaps are always included.
func (hf *hostFuncs) fringe() *object.Builtin {
	return object.NewBuiltin("fringe", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("fringe", 1, 2, len(args))
		}
		h, t, err := hf.resolveTree(args[0])
		if err != nil {
			return object.Errorf("fringe: %v", err)
		}
		opts := arbor.FringeOptions{Nodes: true, Types: true, Comments: true}
		if len(args) == 2 {
			m, err := extractMap(args[1])
			if err != nil {
				return object.Errorf("fringe: options: %v", err)
			}
			if _, ok := m["comments"]; ok {
				opts.Comments = getBool(m, "comments")
			}
			opts.Whitespace = getBool(m, "whitespace")
		}
		results := []object.Object{}
		for el := range t.Fringe(opts) {
			results = append(results, object.NewMap(map[string]object.Object{
				"kind":       object.NewString(el.Kind.String()),
				"type":       object.NewString(el.Type),
				"start_byte": object.NewInt(int64(el.Range.Start)),
				"end_byte":   object.NewInt(int64(el.Range.End)),
				"node":       nodeObject(h, el.Node),
			}))
		}
		return object.NewList(results)
	})
}

// diff(old, new [, output_equal]) → [{op, old, new}]
//
// old and new may be trees or nodes.
func (hf *hostFuncs) diff() *object.Builtin {
	return object.NewBuiltin("diff", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.NewArgsRangeError("diff", 2, 3, len(args))
		}
		oh, on, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("diff: old: %v", err)
		}
		nh, nn, err := hf.resolveNode(args[1])
		if err != nil {
			return object.Errorf("diff: new: %v", err)
		}
		var opts []arbor.DiffOption
		if len(args) == 3 {
			b, ok := args[2].(*object.Bool)
			if !ok {
				return object.Errorf("diff: output_equal must be a bool, got %s", args[2].Type())
			}
			opts = append(opts, arbor.OutputEqual(b.Value()))
		}
		records, err := arbor.DiffNodes(on, nn, opts...)
		if err != nil {
			return object.Errorf("diff: %v", err)
		}
		results := make([]object.Object, len(records))
		for i, r := range records {
			results[i] = object.NewMap(map[string]object.Object{
				"op":  object.NewString(r.Op.String()),
				"old": nodeObject(oh, r.Old),
				"new": nodeObject(nh, r.New),
			})
		}
		return object.NewList(results)
	})
}

// to_h(node [, {byte_ranges, unnamed, text}]) → map
func (hf *hostFuncs) toH() *object.Builtin {
	return object.NewBuiltin("to_h", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsRangeError("to_h", 1, 2, len(args))
		}
		_, n, err := hf.resolveNode(args[0])
		if err != nil {
			return object.Errorf("to_h: %v", err)
		}
		var opts []arbor.SerializeOption
		if len(args) == 2 {
			m, err := extractMap(args[1])
			if err != nil {
				return object.Errorf("to_h: options: %v", err)
			}
			opts = append(opts,
				arbor.ByteRanges(getBool(m, "byte_ranges")),
				arbor.Unnamed(getBool(m, "unnamed")),
				arbor.WithText(getBool(m, "text")),
			)
		}
		return toObject(n.ToMap(opts...).AsMap())
	})
}
