// Package arbor loads tree-sitter grammars, parses source into immutable
// syntax trees, and answers structural questions about them: the deepest
// node at an offset, the ancestor path to it, pattern queries, token
// streams, and a structural diff between two trees.
//
// # Parsing
//
// A [Registry] maps file extensions to grammars. Parse once, then share the
// [Tree] freely between goroutines:
//
//	reg := arbor.DefaultRegistry()
//	tree, err := reg.ParseSource(ctx, arbor.FileSource("main.py"))
//	if err != nil { ... }
//	defer tree.Close()
//
// Nodes are value handles into the tree's arena. They stay valid until
// [Tree.Close]; using one afterwards panics.
//
// # Navigation
//
//   - [Tree.FindByByte] returns the deepest node containing an offset.
//   - [Tree.PathTo] returns the root-to-node chain with field names, and
//     [Path.RIndexByType] finds the nearest enclosing node of a type.
//   - [Cursor] walks a subtree without allocating.
//
// # Comparing trees
//
// [Diff] aligns two trees by structural digest and reports Inserted,
// Removed and Changed subtrees. [SubtreeCounter] finds repeated subtrees
// across any number of trees.
//
// # Snapshots
//
// An [Engine] stores parsed files in SQLite, skips unchanged content by
// hash, and diffs a working file against its last snapshot.
package arbor
