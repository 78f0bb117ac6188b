package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/logging"
)

// version is set at build time.
var version = "dev"

var (
	flagConfig   string
	flagDB       string
	flagFormat   string
	flagLogLevel string
	flagDetect   bool
	flagColor    string
)

// Loaded by the root command's PersistentPreRunE.
var (
	cfg      *config.Config
	registry *arbor.Registry
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Inspect, query and diff tree-sitter syntax trees",
	Long:          "Arbor parses source files with tree-sitter and lets you navigate, query, tokenize and structurally diff the resulting trees.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: nearest "+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "snapshot database path (default: .arbor/snapshots.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&flagDetect, "detect", false, "detect grammars from file content when the extension is unknown")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "color text output: auto|always|never")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(lspCmd)
}

// loadConfig reads the config file, applies environment overrides and then
// explicit flags, and builds the grammar registry.
func loadConfig(cmd *cobra.Command) error {
	path := flagConfig
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path, _ = config.Discover(cwd)
		}
	}
	c := config.Default()
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return err
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("db") {
		c.DB = flagDB
	}
	if flags.Changed("detect") {
		c.Detect = flagDetect
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logging.SetLevel(c.LogLevel)
	cfg = c

	opts := []arbor.RegistryOption{arbor.WithDetection(c.Detect)}
	for ext, grammar := range c.Extensions {
		opts = append(opts, arbor.WithExtension(ext, grammar))
	}
	registry = arbor.NewRegistry(opts...)
	return nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the configured database path, relative paths taken
// from the repo root.
func resolveDBPath(repoRoot, db string) string {
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(repoRoot, db)
}

// openEngine opens the snapshot engine for the repository containing the
// working directory.
func openEngine() (*arbor.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd), cfg.DB)
	return arbor.NewEngine(dbPath,
		arbor.WithRegistry(registry),
		arbor.WithLogger(logging.Default()),
		arbor.WithParallel(cfg.Snapshot.Parallel),
		arbor.WithKeep(cfg.Snapshot.Keep),
		arbor.WithMinSubtreeSize(cfg.Snapshot.MinSize),
	)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}
