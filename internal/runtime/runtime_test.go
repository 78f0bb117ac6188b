package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/logging"
)

const pyTestSource = `def greet(name):
    return "hi " + name

def add(a, b):
    return a + b
`

func writePy(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.py")
	require.NoError(t, os.WriteFile(path, []byte(pyTestSource), 0o644))
	return path
}

func runScript(t *testing.T, script string, globals map[string]any) error {
	t.Helper()
	rt := NewRuntime(nil, "")
	return rt.RunSource(context.Background(), script, globals)
}

// --- tree and node host functions ---

func TestRunSource_ParseAndNodeText(t *testing.T) {
	t.Parallel()
	script := `
tree := parse(test_file)
assert(tree["grammar"] == "python", 'expected python, got {tree["grammar"]}')
r := root(tree)
assert(r["type"] == "module", "expected module")

names := []
kids := named_children(r)
for i := 0; i < len(kids); i++ {
    child := kids[i]
    if child["type"] == "function_definition" {
        names.append(node_text(node_child(child, "name")))
    }
}
assert(len(names) == 2, 'expected 2 functions, got {len(names)}')
assert(names[0] == "greet", 'expected greet, got {names[0]}')
assert(names[1] == "add", 'expected add, got {names[1]}')
`
	require.NoError(t, runScript(t, script, map[string]any{"test_file": writePy(t)}))
}

func TestRunSource_ParseExplicitGrammar(t *testing.T) {
	t.Parallel()
	script := `
tree := parse_src("puts 1\n", "ruby")
assert(root(tree)["type"] == "program", "expected program")
assert(tree["errors"] == 0, "expected no errors")
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_ParseUnknownExtension(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "notes.unknownext")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := runScript(t, `parse(test_file)`, map[string]any{"test_file": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown file extension")
}

func TestRunSource_ParentAndChildren(t *testing.T) {
	t.Parallel()
	script := `
tree := parse_src("x = 1\n", "python")
r := root(tree)
assert(parent(r) == nil, "root has no parent")
stmt := children(r)[0]
assert(parent(stmt)["id"] == r["id"], "parent of child is root")
assign := children(stmt)[0]
assert(len(children(assign)) == 3, "assignment has three children")
assert(len(named_children(assign)) == 2, "assignment has two named children")
assert(node_child(assign, "nope") == nil, "missing field is nil")
left := node_child(assign, "left")
assert(left["field"] == "left", 'expected field left, got {left["field"]}')
assert(left["start_byte"] == 0 && left["end_byte"] == 1, "left spans x")
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_FindByByteAndPathTo(t *testing.T) {
	t.Parallel()
	script := `
tree := parse(test_file)
n := find_by_byte(tree, 5)
assert(n["type"] == "identifier", 'expected identifier, got {n["type"]}')
assert(node_text(n) == "greet", "expected greet")

path := path_to(tree, 5)
assert(path[0]["type"] == "module", "path starts at root")
last := path[len(path) - 1]
assert(last["id"] == n["id"], "path ends at find_by_byte node")
assert(last["field"] == "name", 'expected field name, got {last["field"]}')
`
	require.NoError(t, runScript(t, script, map[string]any{"test_file": writePy(t)}))
}

func TestRunSource_FindByByteOutOfRange(t *testing.T) {
	t.Parallel()
	err := runScript(t, `find_by_byte(parse_src("x\n", "python"), 99)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

// --- query ---

func TestRunSource_QueryHostFunction(t *testing.T) {
	t.Parallel()
	script := `
tree := parse(test_file)
matches := query("(function_definition name: (identifier) @name)", root(tree))
assert(len(matches) == 2, 'expected 2 matches, got {len(matches)}')
assert(node_text(matches[0]["name"]) == "greet", "first match is greet")
assert(node_text(matches[1]["name"]) == "add", "second match is add")

second := node_text(matches[1]["name"])
start := matches[1]["name"]["start_byte"]
windowed := query("(function_definition name: (identifier) @name)", tree, {"start_byte": start})
assert(len(windowed) == 1, 'expected 1 windowed match, got {len(windowed)}')
assert(node_text(windowed[0]["name"]) == second, "window keeps add")
`
	require.NoError(t, runScript(t, script, map[string]any{"test_file": writePy(t)}))
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()
	err := runScript(t, `query("(not_a_real_node_type @x)", parse(test_file))`,
		map[string]any{"test_file": writePy(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")
}

// --- tokens, fringe, diff, to_h ---

func TestRunSource_Tokens(t *testing.T) {
	t.Parallel()
	script := `
tree := parse_src("x = 1 # c\n", "python")
toks := tokens(tree)
assert(len(toks) == 4, 'expected 4 tokens, got {len(toks)}')
assert(toks[0]["text"] == "x", "first token is x")
assert(toks[3]["kind"] == "comment", 'expected comment, got {toks[3]["kind"]}')

no_comments := tokens(tree, {"comments": false})
assert(len(no_comments) == 3, "comments dropped")

with_ws := tokens(tree, {"whitespace": true})
assert(len(with_ws) > 4, "whitespace kept")
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_FringeTilesSource(t *testing.T) {
	t.Parallel()
	script := `
src := "a = 1\n\nb = 2\n"
tree := parse_src(src, "python")
els := fringe(tree, {"whitespace": true})
pos := 0
for i := 0; i < len(els); i++ {
    assert(els[i]["start_byte"] == pos, 'gap before element {i}')
    pos = els[i]["end_byte"]
}
assert(pos == len(src), 'fringe ends at {pos}')
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_Diff(t *testing.T) {
	t.Parallel()
	script := `
old := parse_src("x = 1\n", "python")
cur := parse_src("x = 1\ny = 2\n", "python")
records := diff(old, cur)
assert(len(records) == 2, 'expected 2 records, got {len(records)}')
assert(records[0]["op"] == "changed", "root changed")
assert(records[1]["op"] == "inserted", "statement inserted")
assert(records[1]["old"] == nil, "inserted has no old side")
assert(node_text(records[1]["new"]) == "y = 2", "inserted y = 2")

with_equal := diff(old, cur, true)
assert(len(with_equal) == 3, 'expected 3 records, got {len(with_equal)}')
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_ToH(t *testing.T) {
	t.Parallel()
	script := `
tree := parse_src("x = 1\n", "python")
h := to_h(root(tree))
assert(h["type"] == "module", "module at top")
assert(len(h["children"]) == 1, "one statement")

full := to_h(tree, {"byte_ranges": true, "unnamed": true, "text": true})
assert(full["byte_range"][1] == 6, 'expected end 6, got {full["byte_range"][1]}')
assign := full["children"][0]["children"][0]
assert(len(assign["children"]) == 3, "unnamed = included")
assert(assign["children"][1]["text"] == "=", "leaf text")
`
	require.NoError(t, runScript(t, script, nil))
}

func TestRunSource_ClosedTree(t *testing.T) {
	t.Parallel()
	script := `
tree := parse_src("x\n", "python")
assert(close_tree(tree), "first close succeeds")
assert(!close_tree(tree), "second close is a no-op")
root(tree)
`
	err := runScript(t, script, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

// --- logging ---

func TestRunSource_LogForwardsToLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	rt := NewRuntime(nil, "", WithRuntimeLogger(logging.NewWriter(&buf, "debug")))
	err := rt.RunSource(context.Background(), `log.Warn("careful")`, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "<inline>")
}

// --- script loading ---

func TestRunScript_LoadsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0o644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, t.TempDir())
	require.Error(t, rt.RunScript(context.Background(), "nonexistent.risor", nil))
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()
	content := `x := 42`
	mapFS := fstest.MapFS{
		"outline.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/outline.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript(filepath.Join(dir, "test.risor"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestScriptPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "outline.risor", ScriptPath("outline"))
	assert.Equal(t, "outline.risor", ScriptPath("outline.risor"))
}

// --- importer wiring ---

func TestImport_FSImporterSeesHostGlobals(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func root_type(src) {
	return root(parse_src(src, "python"))["type"]
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helpers
t := helpers.root_type("x = 1\n")
assert(t == "module", 'expected module, got {t}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	script := `
import math_utils
result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}
