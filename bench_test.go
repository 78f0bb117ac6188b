package arbor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jward/arbor/internal/logging"
)

// benchGoSource is a realistic Go file with functions, structs, interfaces
// and method calls.
const benchGoSource = `package bench

import (
	"fmt"
	"strings"
)

// Logger defines a logging interface.
type Logger interface {
	Log(msg string)
	Logf(format string, args ...interface{})
}

// Config holds application configuration.
type Config struct {
	Name    string
	Debug   bool
	MaxRetry int
	Tags    []string
}

// Validate checks the config for correctness.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("max_retry must be non-negative")
	}
	return nil
}

// String returns a human-readable representation.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Name: %s, Debug: %v}", c.Name, c.Debug)
}

// HasTag reports whether the config includes the given tag.
func (c *Config) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// StdoutLogger implements Logger by writing to stdout.
type StdoutLogger struct {
	Prefix string
}

// Log writes a plain message.
func (l *StdoutLogger) Log(msg string) {
	fmt.Printf("[%s] %s\n", l.Prefix, msg)
}

// Logf writes a formatted message.
func (l *StdoutLogger) Logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.Log(msg)
}

// NewApp creates and returns an initialized App.
func NewApp(cfg *Config, log Logger) *App {
	return &App{config: cfg, logger: log}
}

// App is the main application struct.
type App struct {
	config *Config
	logger Logger
}

// Run starts the application.
func (a *App) Run() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.logger.Logf("starting %s", a.config.Name)
	a.process()
	return nil
}

// process does the main work.
func (a *App) process() {
	tags := strings.Join(a.config.Tags, ", ")
	a.logger.Logf("processing with tags: %s", tags)
}

// BuildGreeting constructs a greeting string.
func BuildGreeting(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}

// CountWords returns the number of words in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
`

func parseBench(b *testing.B, src string) *Tree {
	b.Helper()
	tree, err := DefaultRegistry().Parse(context.Background(), "go", []byte(src))
	if err != nil {
		b.Fatal(err)
	}
	return tree
}

// BenchmarkParse_Go measures parsing plus arena construction.
func BenchmarkParse_Go(b *testing.B) {
	ctx := context.Background()
	src := []byte(benchGoSource)
	b.SetBytes(int64(len(src)))
	for i := 0; i < b.N; i++ {
		tree, err := DefaultRegistry().Parse(ctx, "go", src)
		if err != nil {
			b.Fatal(err)
		}
		tree.Close()
	}
}

// BenchmarkDigest_Go measures digesting every node of a fresh tree.
func BenchmarkDigest_Go(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tree := parseBench(b, benchGoSource)
		b.StartTimer()
		for n := range tree.Walk() {
			_ = n.Digest()
		}
		b.StopTimer()
		tree.Close()
		b.StartTimer()
	}
}

// BenchmarkDiff_Go measures a diff where one function body changed.
func BenchmarkDiff_Go(b *testing.B) {
	old := parseBench(b, benchGoSource)
	defer old.Close()
	cur := parseBench(b, strings.Replace(benchGoSource, "len(strings.Fields(s))", "len(strings.Split(s, \" \"))", 1))
	defer cur.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DiffTrees(old, cur); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkTokenize_Go measures a full pass over the token stream.
func BenchmarkTokenize_Go(b *testing.B) {
	tree := parseBench(b, benchGoSource)
	defer tree.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range tree.Tokenize() {
		}
	}
}

// BenchmarkSnapshot_Go measures a cold snapshot of one file into a fresh
// database.
func BenchmarkSnapshot_Go(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		dir := b.TempDir()
		srcPath := filepath.Join(dir, "bench.go")
		if err := os.WriteFile(srcPath, []byte(benchGoSource), 0o644); err != nil {
			b.Fatal(err)
		}
		e, err := NewEngine(filepath.Join(dir, "bench.db"), WithLogger(logging.NewWriter(io.Discard, "error")))
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if _, err := e.Snapshot(ctx, []string{srcPath}); err != nil {
			e.Close()
			b.Fatal(err)
		}

		b.StopTimer()
		e.Close()
		b.StartTimer()
	}
}
