package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeAndLoad(t *testing.T) {
	base := t.TempDir()

	cfg, err := InitializeAt(base, "")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.KVDriver)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)

	loaded, err := LoadFrom(filepath.Join(base, FlixDir))
	require.NoError(t, err)
	assert.Equal(t, cfg.KVDriver, loaded.KVDriver)
	assert.Equal(t, cfg.MaxValueSize, loaded.MaxValueSize)
	assert.Equal(t, cfg.InitTimeoutSecs, loaded.InitTimeoutSecs)
}

func TestInitializeAt_UnknownDriver(t *testing.T) {
	_, err := InitializeAt(t.TempDir(), "redis")
	assert.Error(t, err)
}

func TestInitializeAt_AlreadyExists(t *testing.T) {
	base := t.TempDir()
	_, err := InitializeAt(base, DriverSQLite)
	require.NoError(t, err)

	_, err = InitializeAt(base, DriverSQLite)
	assert.Error(t, err)
}

func TestDocumentsPath_PerDriver(t *testing.T) {
	base := t.TempDir()
	cfg, err := InitializeAt(base, DriverBadger)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, FlixDir, DocumentsDir), cfg.DocumentsPath())

	cfg.KVDriver = DriverSQLite
	assert.Equal(t, filepath.Join(base, FlixDir, DocumentsDB), cfg.DocumentsPath())
	assert.Equal(t, filepath.Join(base, FlixDir, BlobsDB), cfg.BlobsPath())
}

func TestLoadFrom_AppliesDefaults(t *testing.T) {
	root := filepath.Join(t.TempDir(), FlixDir)
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFile), []byte("kv_driver = \"badger\"\n"), 0644))

	cfg, err := LoadFrom(root)
	require.NoError(t, err)
	assert.Equal(t, DriverBadger, cfg.KVDriver)
	assert.Equal(t, DefaultMaxValueSize, cfg.MaxValueSize)
	assert.Equal(t, DefaultInitTimeout, cfg.InitTimeoutSecs)
}
