package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "https://www.accessdata.fda.gov/cdrh_docs", cfg.FDA.DocsBaseURL)
	assert.Equal(t, 3, cfg.Download.Concurrency)
	assert.Equal(t, 1.0, cfg.Download.RatePerSec)
	assert.Equal(t, 6, cfg.Extract.MaxVisionPages)
	assert.Equal(t, 5, cfg.Analyze.MinCompanyEdges)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DEVTREE_PATHS_DATA_DIR", "/var/devtree")
	t.Setenv("DEVTREE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/devtree", cfg.Paths.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	yaml := "download:\n  concurrency: 9\nlog:\n  format: console\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Download.Concurrency)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "data", cfg.Paths.DataDir, "unset keys keep defaults")
}

func TestPathHelpers(t *testing.T) {
	p := PathsConfig{DataDir: "/var/devtree"}
	assert.Equal(t, "/var/devtree/devices.json", p.StorePath())
	assert.Equal(t, "/var/devtree/graph.json", p.GraphPath())
	assert.Equal(t, "/var/devtree/sync_report.md", p.ReportPath())
}

// chdirTemp isolates Load from any config.yaml in the repo root.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}
