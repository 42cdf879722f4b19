package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(wd)

	loader := NewLoader(nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Pack.Source)
	assert.Equal(t, "./dist", cfg.Pack.Output)
	assert.False(t, cfg.Pack.Watch)
	assert.Equal(t, 300*time.Millisecond, cfg.Pack.Debounce)
	assert.Equal(t, "127.0.0.1", cfg.Serve.Address)
	assert.Equal(t, 8080, cfg.Serve.Port)
}

func TestLoaderLoadFromProjectFile(t *testing.T) {
	tmpDir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(wd)

	contents := `
[pack]
source = "./app"
output = "./build"
watch = true

[serve]
address = "0.0.0.0"
port = 3000

[sync]
relay_url = "wss://relay.example.com/sync"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "tonk.toml"), []byte(contents), 0644))

	loader := NewLoader(nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "./app", cfg.Pack.Source)
	assert.Equal(t, "./build", cfg.Pack.Output)
	assert.True(t, cfg.Pack.Watch)
	assert.Equal(t, "0.0.0.0", cfg.Serve.Address)
	assert.Equal(t, 3000, cfg.Serve.Port)
	assert.Equal(t, "wss://relay.example.com/sync", cfg.Sync.RelayURL)
}

func TestLoaderEnvOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(wd)

	require.NoError(t, os.Setenv("TONK_SERVE_PORT", "9999"))
	defer os.Unsetenv("TONK_SERVE_PORT")

	loader := NewLoader(nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Serve.Port)
}
