package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "cli", cfg.Format)
	require.Equal(t, int64(1<<20), cfg.MaxFileSize)
	require.Equal(t, 2*time.Second, cfg.RuleTimeout())
	require.Equal(t, 0, cfg.Workers)
	require.Contains(t, cfg.Exclude, ".git/**")
	require.Empty(t, cfg.FailOn)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
format: sarif
workers: 4
fail_on: high
include:
  - "src/**"
exclude:
  - "src/gen/**"
rules:
  - extra-rules.yaml
rule_timeout_ms: 500
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sarif", cfg.Format)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, "high", cfg.FailOn)
	require.Equal(t, []string{"src/**"}, cfg.Include)
	require.Equal(t, []string{"src/gen/**"}, cfg.Exclude)
	require.Equal(t, []string{"extra-rules.yaml"}, cfg.Rules)
	require.Equal(t, 500*time.Millisecond, cfg.RuleTimeout())
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: json\n"), 0o644))

	t.Setenv("SENTINEL_FORMAT", "markdown")
	t.Setenv("SENTINEL_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "markdown", cfg.Format)
	require.Equal(t, 2, cfg.Workers)
}
