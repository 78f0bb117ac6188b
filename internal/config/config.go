// Package config loads arbor's .arbor.yaml settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory
// towards the filesystem root.
const FileName = ".arbor.yaml"

// Config is the on-disk configuration. Zero fields take defaults.
type Config struct {
	LogLevel   string            `yaml:"log_level"`
	DB         string            `yaml:"db"`
	Detect     bool              `yaml:"detect"`
	Extensions map[string]string `yaml:"extensions,omitempty"`
	Tokenize   TokenizeConfig    `yaml:"tokenize"`
	Diff       DiffConfig        `yaml:"diff"`
	Snapshot   SnapshotConfig    `yaml:"snapshot"`
}

type TokenizeConfig struct {
	IgnoreWhitespace bool `yaml:"ignore_whitespace"`
	IgnoreComments   bool `yaml:"ignore_comments"`
}

type DiffConfig struct {
	OutputEqual bool `yaml:"output_equal"`
}

type SnapshotConfig struct {
	Keep     int  `yaml:"keep"`
	MinCount int  `yaml:"min_count"`
	MinSize  int  `yaml:"min_size"`
	Parallel bool `yaml:"parallel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DB:       filepath.Join(".arbor", "snapshots.db"),
		Tokenize: TokenizeConfig{IgnoreWhitespace: true},
		Snapshot: SnapshotConfig{Keep: 10, MinCount: 2, MinSize: 4, Parallel: true},
	}
}

// FromYAML parses data over the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML serializes the configuration.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Discover walks up from dir looking for FileName.
func Discover(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ApplyEnv overrides fields from ARBOR_LOG_LEVEL, ARBOR_DB and ARBOR_DETECT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ARBOR_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("ARBOR_DB"); ok && v != "" {
		c.DB = v
	}
	if v, ok := lookup("ARBOR_DETECT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ARBOR_DETECT: %w", err)
		}
		c.Detect = b
	}
	return c.Validate()
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if c.DB == "" {
		return errors.New("db must not be empty")
	}
	if c.Snapshot.Keep < 0 || c.Snapshot.MinCount < 0 || c.Snapshot.MinSize < 0 {
		return errors.New("snapshot limits must not be negative")
	}
	for ext, grammar := range c.Extensions {
		if ext == "" || grammar == "" {
			return fmt.Errorf("extensions: empty mapping %q: %q", ext, grammar)
		}
	}
	return nil
}
