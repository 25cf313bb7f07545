package sieveconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasFiniteTimeoutsAndInMemoryStore(t *testing.T) {
	cfg := Default()
	require.Equal(t, 5*time.Second, cfg.Program.ConnectTimeout())
	require.Equal(t, 30*time.Second, cfg.Program.IdleTimeout())
	require.Equal(t, ":memory:", cfg.Dupstore.Path)
	require.Zero(t, cfg.Dupstore.Retention())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sievec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
program:
  connect_timeout_ms: 1000
dupstore:
  path: /var/lib/sievec/dupstore.db
  retention_hours: 72
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1*time.Second, cfg.Program.ConnectTimeout())
	// idle_timeout_ms was omitted by the fixture; the pre-populated default survives unmarshal.
	require.Equal(t, 30*time.Second, cfg.Program.IdleTimeout())
	require.Equal(t, "/var/lib/sievec/dupstore.db", cfg.Dupstore.Path)
	require.Equal(t, 72*time.Hour, cfg.Dupstore.Retention())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
