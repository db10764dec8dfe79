package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test; testing.T.Chdir
// requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.App.Host)
	assert.Equal(t, 4390, cfg.App.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, 0, cfg.Ingest.Port)
	assert.Equal(t, 10_000, cfg.Buffer.SpanCapacity)
	assert.Equal(t, 16, cfg.UI.IndentPx)
	assert.Equal(t, 80, cfg.UI.TerminalWidth)
	assert.Empty(t, cfg.Source.URL)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
app:
  port: 9999
  log_level: debug
source:
  url: http://localhost:8000
  timeout: 10s
buffer:
  span_capacity: 500
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.App.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "http://localhost:8000", cfg.Source.URL)
	assert.Equal(t, 500, cfg.Buffer.SpanCapacity)
	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.App.Host)
	assert.Equal(t, 16, cfg.UI.IndentPx)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TRACEVIEW_APP_PORT", "7777")
	t.Setenv("TRACEVIEW_SOURCE_URL", "http://api.internal:8000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.App.Port)
	assert.Equal(t, "http://api.internal:8000", cfg.Source.URL)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("app: ["), 0o644))
	chdir(t, dir)

	_, err := Load()
	require.Error(t, err)
}

func TestGetTimeoutDuration(t *testing.T) {
	c := SourceConfig{Timeout: "5s"}
	assert.Equal(t, 5*time.Second, c.GetTimeoutDuration())

	c = SourceConfig{Timeout: ""}
	assert.Equal(t, 30*time.Second, c.GetTimeoutDuration())

	c = SourceConfig{Timeout: "garbage"}
	assert.Equal(t, 30*time.Second, c.GetTimeoutDuration())
}
