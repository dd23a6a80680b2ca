package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every lookup at a temp dir so the developer's own files
// and environment never leak in.
func isolate(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("HOME", dir)
	for _, key := range []string{"BITTASK_DB_PATH", "BITTASK_SYNC_TOKEN", "BITTASK_LOG_LEVEL", "BITTASK_SYNC_MAX_RETRIES", "BITTASK_SYNC_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func TestDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "bittask", "BitTask.db"), cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 8080, cfg.Feed.Port)
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.Sync.Token)
	assert.Empty(t, cfg.Sync.URL)
	assert.Empty(t, cfg.File)
}

func TestEnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("BITTASK_DB_PATH", "/tmp/other.db")
	t.Setenv("BITTASK_SYNC_TOKEN", "s3cret")
	t.Setenv("BITTASK_SYNC_MAX_RETRIES", "7")
	t.Setenv("BITTASK_SYNC_URL", "https://sync.example.com")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DB.Path)
	assert.Equal(t, "s3cret", cfg.Sync.Token)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
	assert.Equal(t, "https://sync.example.com", cfg.Sync.URL)
}

func TestConfigFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "bittask.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[log]
level = "debug"

[sync]
interval = "5s"
batch_size = 10

[feed]
port = 9090
`), 0644))

	cfg, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, 9090, cfg.Feed.Port)
	assert.Equal(t, 3, cfg.Sync.MaxRetries, "unset keys keep defaults")
}

func TestDefaultConfigLocation(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "config", "bittask")
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte("[feed]\nport = 7000\n"), 0644))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Feed.Port)
}

func TestExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(New(), filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	v := New()
	v.Set("sync.batch_size", 0)
	v.Set("feed.port", 70000)

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.batch_size")
	assert.Contains(t, err.Error(), "feed.port")
}
