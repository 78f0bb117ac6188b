package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/logging"
)

// Runtime embeds a Risor VM and exposes arbor trees to scripts through host
// functions. Trees parsed by a script are closed when the script returns.
type Runtime struct {
	registry   *arbor.Registry
	logger     *log.Logger
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Import statements are then resolved against the
// same FS.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log object.
func WithRuntimeLogger(l *log.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime that parses with reg (DefaultRegistry when
// nil) and loads scripts relative to scriptsDir.
func NewRuntime(reg *arbor.Registry, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		registry:   reg,
		scriptsDir: scriptsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = arbor.DefaultRegistry()
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly. Useful for testing
// without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	trees := newTreeStore()
	defer trees.closeAll()

	globals := r.buildGlobals(trees, label, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", logging.FieldScript, label)
	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer for the Runtime's script source,
// or nil if neither an fs.FS nor a scripts directory is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file. With an fs.FS configured the path is
// taken relative to the FS root; otherwise relative paths are joined to
// scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ScriptPath returns the file name of a bundled script.
func ScriptPath(name string) string {
	if strings.HasSuffix(name, ".risor") {
		return name
	}
	return name + ".risor"
}

// buildGlobals constructs the globals exposed to a single script run.
func (r *Runtime) buildGlobals(trees *treeStore, label string, extra map[string]any) map[string]any {
	h := &hostFuncs{registry: r.registry, trees: trees}
	globals := map[string]any{
		"parse":          h.parse(),
		"parse_src":      h.parseSrc(),
		"close_tree":     h.closeTree(),
		"root":           h.root(),
		"children":       h.children(false),
		"named_children": h.children(true),
		"parent":         h.parent(),
		"node_child":     h.nodeChild(),
		"node_text":      h.nodeText(),
		"find_by_byte":   h.findByByte(),
		"path_to":        h.pathTo(),
		"query":          h.query(),
		"tokens":         h.tokens(),
		"fringe":         h.fringe(),
		"diff":           h.diff(),
		"to_h":           h.toH(),
		"log":            mustProxy(&logObject{logger: r.logger.With(logging.FieldScript, label)}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.Info/Warn/Error/Debug for Risor scripts.
type logObject struct {
	logger *log.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info(msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn(msg) }
func (l *logObject) Error(msg string) { l.logger.Error(msg) }
func (l *logObject) Debug(msg string) { l.logger.Debug(msg) }
