package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromYAML_OverlaysDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := FromYAML([]byte(`
log_level: debug
extensions:
  .pyw: python
diff:
  output_equal: true
snapshot:
  keep: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(".arbor", "snapshots.db"), cfg.DB)
	assert.Equal(t, "python", cfg.Extensions[".pyw"])
	assert.True(t, cfg.Diff.OutputEqual)
	assert.True(t, cfg.Tokenize.IgnoreWhitespace)
	assert.Equal(t, 3, cfg.Snapshot.Keep)
	assert.Equal(t, 2, cfg.Snapshot.MinCount)
}

func TestFromYAML_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "log_level: loud\n"},
		{"bad syntax", "log_level: [\n"},
		{"negative keep", "snapshot:\n  keep: -1\n"},
		{"empty db", "db: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromYAML([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestToYAML_RoundTrip(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Extensions = map[string]string{".pyw": "python"}

	data, err := cfg.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "log_level: info")

	back, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("db: other.db\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.db", cfg.DB)
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("{}\n"), 0o644))

	got, ok := Discover(nested)
	require.True(t, ok)
	want, err := filepath.EvalSymlinks(filepath.Join(root, FileName))
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{"ARBOR_LOG_LEVEL": "warn", "ARBOR_DB": "x.db", "ARBOR_DETECT": "true"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "x.db", cfg.DB)
	assert.True(t, cfg.Detect)

	env["ARBOR_DETECT"] = "maybe"
	require.Error(t, Default().ApplyEnv(lookup))
}
