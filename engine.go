package arbor

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jward/arbor/internal/logging"
	"github.com/jward/arbor/internal/store"
)

// digestVersion tags the subtree digest scheme stored with snapshots.
const digestVersion = "sha256-v1"

// Engine records parsed snapshots of source files in SQLite and compares
// files on disk against them.
type Engine struct {
	store    *store.Store
	registry *Registry
	logger   *log.Logger

	useParallel bool
	keep        int
	minSize     int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRegistry sets the grammar registry. The default is DefaultRegistry.
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// WithLogger sets the logger. The default is logging.Default.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithParallel controls the parallel snapshot pipeline. When true (default),
// Snapshot parses on a worker pool and commits from a single goroutine.
func WithParallel(parallel bool) EngineOption {
	return func(e *Engine) { e.useParallel = parallel }
}

// WithKeep bounds how many snapshots are kept per file. Zero keeps all.
func WithKeep(n int) EngineOption {
	return func(e *Engine) { e.keep = n }
}

// WithMinSubtreeSize sets the smallest subtree, in named nodes, that is
// recorded for duplicate detection. The default is 4.
func WithMinSubtreeSize(n int) EngineOption {
	return func(e *Engine) { e.minSize = n }
}

// NewEngine opens or creates the snapshot database at dbPath.
func NewEngine(dbPath string, opts ...EngineOption) (*Engine, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("arbor: create db dir: %w", err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("arbor: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("arbor: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		useParallel: true,
		minSize:     4,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) Store() *store.Store  { return e.store }
func (e *Engine) Registry() *Registry { return e.registry }

// DigestsChanged reports whether the database was written with a different
// subtree digest scheme, in which case duplicate counts across old and new
// snapshots are not comparable.
func (e *Engine) DigestsChanged() bool {
	stored, err := e.store.GetMetadata("digest_version")
	if err != nil || stored == "" {
		return false
	}
	return stored != digestVersion
}

// SnapshotResult reports what Snapshot did with one path.
type SnapshotResult struct {
	Path       string
	Grammar    string
	SnapshotID int64
	Skipped    bool // content unchanged since the latest snapshot
	Nodes      int
	Errors     int
	Subtrees   int
}

// Snapshot parses and stores each path. Files whose extension no grammar
// claims are ignored, and files whose content hash matches their latest
// snapshot are reported as skipped without being parsed.
//
// Errors on individual files are collected; processing continues.
func (e *Engine) Snapshot(ctx context.Context, paths []string) ([]SnapshotResult, error) {
	start := time.Now()
	var (
		results []SnapshotResult
		err     error
	)
	if e.useParallel {
		results, err = e.snapshotParallel(ctx, paths)
	} else {
		results, err = e.snapshotSerial(ctx, paths)
	}
	if serr := e.store.SetMetadata("digest_version", digestVersion); serr != nil && err == nil {
		err = serr
	}
	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	e.logger.Info("snapshot complete",
		logging.FieldFiles, len(results),
		logging.FieldSkipped, skipped,
		logging.FieldDuration, time.Since(start).Round(time.Millisecond))
	return results, err
}

func (e *Engine) snapshotSerial(ctx context.Context, paths []string) ([]SnapshotResult, error) {
	var (
		results []SnapshotResult
		errs    []error
	)
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip != nil {
			results = append(results, *skip)
			continue
		}
		if item == nil {
			continue
		}
		res, err := e.parseFile(ctx, item)
		if err == nil {
			err = e.commitFile(item, &res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", path, err))
			continue
		}
		results = append(results, res)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("arbor: snapshot had %d error(s): %w", len(errs), errs[0])
	}
	return results, nil
}

// prepareFile resolves the grammar, reads the file and checks its hash
// against the latest snapshot. It returns a nil item for unsupported files
// and a non-nil skip result for unchanged ones.
func (e *Engine) prepareFile(path string) (*workItem, *SnapshotResult, error) {
	grammar, err := e.registry.Resolve(path)
	if err != nil {
		return nil, nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil {
		latest, err := e.store.LatestSnapshot(existing.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("latest snapshot: %w", err)
		}
		if latest != nil && latest.Hash == hash && existing.Grammar == grammar {
			e.logger.Debug("unchanged", logging.FieldPath, path, logging.FieldHash, hash[:12])
			return nil, &SnapshotResult{
				Path:       path,
				Grammar:    grammar,
				SnapshotID: latest.ID,
				Skipped:    true,
				Nodes:      latest.NodeCount,
				Errors:     latest.ErrorCount,
			}, nil
		}
	}
	return &workItem{path: path, grammar: grammar, content: content, hash: hash}, nil, nil
}

// parseFile parses one prepared file and fills its batch. It touches no
// shared state and may run on any goroutine.
func (e *Engine) parseFile(ctx context.Context, item *workItem) (SnapshotResult, error) {
	if err := ctx.Err(); err != nil {
		return SnapshotResult{}, err
	}
	tree, err := e.registry.Parse(ctx, item.grammar, item.content)
	if err != nil {
		return SnapshotResult{}, err
	}
	defer tree.Close()

	counter := NewSubtreeCounter()
	counter.AddTree(tree)

	batch := store.NewSnapshotBatch(item.path, item.grammar)
	batch.Snapshot = store.Snapshot{
		Hash:       item.hash,
		Source:     item.content,
		NodeCount:  tree.Len(),
		ErrorCount: tree.ErrorCount(),
		LineCount:  tree.LineCount(),
		TakenAt:    time.Now(),
	}
	for _, st := range counter.Stats() {
		if st.Size < e.minSize {
			continue
		}
		first := st.First
		batch.AddSubtree(store.Subtree{
			Digest:    st.Digest,
			Type:      st.Type,
			Size:      st.Size,
			Count:     st.Count,
			StartByte: int(first.StartByte()),
			EndByte:   int(first.EndByte()),
			StartLine: int(first.StartPoint().Row),
			StartCol:  int(first.StartPoint().Column),
		})
	}
	item.batch = batch
	return SnapshotResult{
		Path:     item.path,
		Grammar:  item.grammar,
		Nodes:    batch.Snapshot.NodeCount,
		Errors:   batch.Snapshot.ErrorCount,
		Subtrees: len(batch.Subtrees),
	}, nil
}

// commitFile writes a parsed batch and prunes old snapshots.
func (e *Engine) commitFile(item *workItem, res *SnapshotResult) error {
	id, err := e.store.CommitSnapshot(item.batch)
	if err != nil {
		return err
	}
	res.SnapshotID = id
	if e.keep > 0 {
		if _, err := e.store.PruneSnapshots(item.batch.Snapshot.FileID, e.keep); err != nil {
			return err
		}
	}
	e.logger.Debug("snapshot",
		logging.FieldPath, item.path,
		logging.FieldGrammar, item.grammar,
		logging.FieldSnapshot, id,
		logging.FieldNodes, res.Nodes,
		logging.FieldErrors, res.Errors,
		logging.FieldSubtrees, res.Subtrees)
	return nil
}

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
}

// SnapshotDirectory snapshots every supported file under root. Inside a git
// repository it uses git ls-files to respect .gitignore, and otherwise walks
// the filesystem, skipping hidden and dependency directories.
func (e *Engine) SnapshotDirectory(ctx context.Context, root string) ([]SnapshotResult, error) {
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.logger.Debug("git ls-files unavailable, walking", logging.FieldPath, root, logging.FieldError, err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	return e.Snapshot(ctx, paths)
}

func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, err := e.registry.Resolve(absPath); err == nil {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, err := e.registry.Resolve(path); err == nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// LoadSnapshot parses the latest stored snapshot of path.
func (e *Engine) LoadSnapshot(ctx context.Context, path string) (*Tree, *store.Snapshot, error) {
	f, err := e.store.FileByPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("arbor: load snapshot: %w", err)
	}
	if f == nil {
		return nil, nil, fmt.Errorf("arbor: load snapshot %s: %w", path, ErrNoSnapshot)
	}
	sn, err := e.store.LatestSnapshot(f.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("arbor: load snapshot: %w", err)
	}
	if sn == nil {
		return nil, nil, fmt.Errorf("arbor: load snapshot %s: %w", path, ErrNoSnapshot)
	}
	tree, err := e.registry.Parse(ctx, f.Grammar, sn.Source)
	if err != nil {
		return nil, nil, err
	}
	return tree, sn, nil
}

// SnapshotDiff is the result of DiffSnapshot. Records refer to nodes of Old
// and New, which stay open until Close.
type SnapshotDiff struct {
	Snapshot *store.Snapshot
	Old      *Tree
	New      *Tree
	Records  []DiffRecord
}

// Close releases both trees.
func (d *SnapshotDiff) Close() {
	d.Old.Close()
	d.New.Close()
}

// DiffSnapshot diffs the file at path against its latest snapshot.
func (e *Engine) DiffSnapshot(ctx context.Context, path string, opts ...DiffOption) (*SnapshotDiff, error) {
	old, sn, err := e.LoadSnapshot(ctx, path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		old.Close()
		return nil, fmt.Errorf("arbor: read %s: %w", path, err)
	}
	cur, err := old.Grammar().Parse(ctx, content)
	if err != nil {
		old.Close()
		return nil, err
	}
	records, err := Diff(old, cur, opts...)
	if err != nil {
		old.Close()
		cur.Close()
		return nil, err
	}
	return &SnapshotDiff{Snapshot: sn, Old: old, New: cur, Records: records}, nil
}

// Duplicates returns subtree shapes repeated across the latest snapshots.
func (e *Engine) Duplicates(minCount, minSize int) ([]*store.Duplicate, error) {
	return e.store.Duplicates(minCount, minSize)
}
