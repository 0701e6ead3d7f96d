package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Output.Indent)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
workers: 4
output:
  format: yaml
  indent: false
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.False(t, cfg.Output.Indent)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subreq.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": 2}`), 0o644))
	t.Setenv("SUBREQ_WORKERS", "6")
	t.Setenv("SUBREQ_LOG_LEVEL", "warn")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ExplicitSetWins(t *testing.T) {
	t.Setenv("SUBREQ_WORKERS", "6")
	v := New()
	v.Set(KeyWorkers, 3)

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero workers", KeyWorkers, 0},
		{"unknown level", KeyLogLevel, "chatty"},
		{"unknown log format", KeyLogFormat, "xml"},
		{"unknown output format", KeyOutputFormat, "toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v, "")
			assert.Error(t, err)
		})
	}

	v := New()
	v.Set(KeyWorkers, -1)
	_, err := Load(v, "")
	assert.ErrorIs(t, err, errWorkers)
}
