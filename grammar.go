package arbor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-enry/go-enry/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/lua"
	"github.com/smacker/go-tree-sitter/ocaml"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/scala"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// builtinGrammars lists the grammars compiled into arbor. Languages are
// loaded on first use.
var builtinGrammars = map[string]func() *sitter.Language{
	"bash":       bash.GetLanguage,
	"c":          c.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"c_sharp":    csharp.GetLanguage,
	"css":        css.GetLanguage,
	"go":         golang.GetLanguage,
	"html":       html.GetLanguage,
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"lua":        lua.GetLanguage,
	"ocaml":      ocaml.GetLanguage,
	"php":        php.GetLanguage,
	"python":     python.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"rust":       rust.GetLanguage,
	"scala":      scala.GetLanguage,
	"swift":      swift.GetLanguage,
	"toml":       toml.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"typescript": ts.GetLanguage,
	"yaml":       yaml.GetLanguage,
}

// builtinExtensions maps lower-cased file extensions to grammar names.
var builtinExtensions = map[string]string{
	".sh":    "bash",
	".bash":  "bash",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "c_sharp",
	".css":   "css",
	".go":    "go",
	".html":  "html",
	".htm":   "html",
	".java":  "java",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".lua":   "lua",
	".ml":    "ocaml",
	".php":   "php",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".scala": "scala",
	".swift": "swift",
	".toml":  "toml",
	".ts":    "typescript",
	".tsx":   "tsx",
	".yaml":  "yaml",
	".yml":   "yaml",
}

// enryNames maps linguist language names reported by go-enry to grammars.
var enryNames = map[string]string{
	"Shell":      "bash",
	"C":          "c",
	"C++":        "cpp",
	"C#":         "c_sharp",
	"CSS":        "css",
	"Go":         "go",
	"HTML":       "html",
	"Java":       "java",
	"JavaScript": "javascript",
	"Lua":        "lua",
	"OCaml":      "ocaml",
	"PHP":        "php",
	"Python":     "python",
	"Ruby":       "ruby",
	"Rust":       "rust",
	"Scala":      "scala",
	"Swift":      "swift",
	"TOML":       "toml",
	"TSX":        "tsx",
	"TypeScript": "typescript",
	"YAML":       "yaml",
}

// Grammar is a loaded tree-sitter language under a stable name.
type Grammar struct {
	name string
	load func() *sitter.Language

	once sync.Once
	lang *sitter.Language
}

// NewGrammar wraps a tree-sitter language constructor under name.
func NewGrammar(name string, load func() *sitter.Language) *Grammar {
	return &Grammar{name: name, load: load}
}

func (g *Grammar) Name() string { return g.name }

// Language returns the underlying tree-sitter language, loading it once.
func (g *Grammar) Language() *sitter.Language {
	g.once.Do(func() { g.lang = g.load() })
	return g.lang
}

// Parse parses src into a Tree. A fresh parser is used per call, so Parse
// may be called from many goroutines at once. Syntax errors do not fail the
// parse; they show up as ERROR and MISSING nodes.
func (g *Grammar) Parse(ctx context.Context, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("arbor: parse %s: %w: %w", g.name, ErrParse, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("arbor: parse %s: %w", g.name, ErrParse)
	}
	return newTree(g, src, tree), nil
}

// Registry resolves filenames to grammars. The zero value is not usable;
// construct one with NewRegistry.
type Registry struct {
	grammars   map[string]*Grammar
	extensions map[string]string
	detect     bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithExtension maps ext (with or without the leading dot) to grammar.
func WithExtension(ext, grammar string) RegistryOption {
	return func(r *Registry) {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extensions[strings.ToLower(ext)] = grammar
	}
}

// WithGrammar registers an additional grammar, replacing any builtin of the
// same name.
func WithGrammar(name string, load func() *sitter.Language) RegistryOption {
	return func(r *Registry) {
		r.grammars[name] = NewGrammar(name, load)
	}
}

// WithDetection enables content-based detection in ForSource when a
// filename's extension is unknown.
func WithDetection(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.detect = enabled
	}
}

// NewRegistry returns a registry holding every builtin grammar and
// extension, adjusted by opts.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		grammars:   make(map[string]*Grammar, len(builtinGrammars)),
		extensions: make(map[string]string, len(builtinExtensions)),
	}
	for name, load := range builtinGrammars {
		r.grammars[name] = NewGrammar(name, load)
	}
	for ext, name := range builtinExtensions {
		r.extensions[ext] = name
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a shared registry with the builtin configuration.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Resolve returns the grammar name for filename, keyed on its lower-cased
// extension.
func (r *Registry) Resolve(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name, ok := r.extensions[ext]
	if !ok {
		return "", fmt.Errorf("arbor: resolve %q: %w", filename, ErrUnknownExtension)
	}
	return name, nil
}

// Detect resolves filename by extension and, failing that, by content using
// shebangs, modelines and the linguist classifier.
func (r *Registry) Detect(filename string, content []byte) (string, error) {
	if name, err := r.Resolve(filename); err == nil {
		return name, nil
	}
	lang := enry.GetLanguage(filepath.Base(filename), content)
	if name, ok := enryNames[lang]; ok {
		if _, loaded := r.grammars[name]; loaded {
			return name, nil
		}
	}
	return "", fmt.Errorf("arbor: detect %q: %w", filename, ErrUnknownExtension)
}

// Grammar returns the grammar registered under name.
func (r *Registry) Grammar(name string) (*Grammar, error) {
	g, ok := r.grammars[name]
	if !ok {
		return nil, fmt.Errorf("arbor: grammar %q: %w", name, ErrUnknownGrammar)
	}
	return g, nil
}

// ForFilename resolves filename and returns its grammar.
func (r *Registry) ForFilename(filename string) (*Grammar, error) {
	name, err := r.Resolve(filename)
	if err != nil {
		return nil, err
	}
	return r.Grammar(name)
}

// Parse parses src with the grammar registered under name.
func (r *Registry) Parse(ctx context.Context, name string, src []byte) (*Tree, error) {
	g, err := r.Grammar(name)
	if err != nil {
		return nil, err
	}
	return g.Parse(ctx, src)
}

// Names returns the registered grammar names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.grammars))
	for name := range r.grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the extensions mapped to grammar, sorted.
func (r *Registry) Extensions(grammar string) []string {
	var exts []string
	for ext, name := range r.extensions {
		if name == grammar {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
