package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwasm-go/rwasmvm/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultVMConfig(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rwasmvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fuel:
  limit: 5000
memory:
  max_pages: 16
storage:
  backend: goleveldb
  dir: /tmp/state
log:
  level: debug
`), 0o600))
	t.Setenv("RWASMVM_CACHE_SIZE", "3")
	t.Setenv("RWASMVM_FUEL_DISABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), cfg.Fuel.Limit)
	assert.True(t, cfg.Fuel.Disabled)
	assert.Equal(t, uint32(16), cfg.Limits.MaxMemoryPages)
	assert.Equal(t, 3, cfg.Cache.Size)
	assert.Equal(t, "goleveldb", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/state", cfg.Storage.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, types.DefaultVMConfig().Limits.MaxStackHeight, cfg.Limits.MaxStackHeight)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Uint64(FuelLimitKey, 0, "")
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--fuel.limit=42"}))

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Fuel.Limit)
}

func TestValidate(t *testing.T) {
	cfg := types.DefaultVMConfig()
	require.NoError(t, Validate(cfg))

	bad := cfg
	bad.Storage.Backend = "rocksdb"
	assert.ErrorIs(t, Validate(bad), ErrUnknownBackend)

	bad = cfg
	bad.Storage.Backend = "goleveldb"
	assert.Error(t, Validate(bad))

	bad = cfg
	bad.Limits.MaxMemoryPages = 0
	assert.Error(t, Validate(bad))
}
