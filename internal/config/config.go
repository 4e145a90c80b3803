// Package config reads the VM configuration from a file, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rwasm-go/rwasmvm/types"
)

const EnvPrefix = "RWASMVM"

const (
	FuelLimitKey      = "fuel.limit"
	FuelDisabledKey   = "fuel.disabled"
	MemoryMaxPagesKey = "memory.max_pages"
	StackMaxHeightKey = "stack.max_height"
	OutputMaxSizeKey  = "output.max_size"
	CacheSizeKey      = "cache.size"
	LogLevelKey       = "log.level"
	LogFileKey        = "log.file"
	LogDebugKey       = "log.debug"
	StorageBackendKey = "storage.backend"
	StorageDirKey     = "storage.dir"
	MetricsEnabledKey = "metrics.enabled"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// New returns a viper instance preloaded with the defaults and RWASMVM_ environment
// overrides: RWASMVM_FUEL_LIMIT sets fuel.limit.
func New() *viper.Viper {
	v := viper.New()
	def := types.DefaultVMConfig()
	v.SetDefault(FuelLimitKey, def.Fuel.Limit)
	v.SetDefault(FuelDisabledKey, def.Fuel.Disabled)
	v.SetDefault(MemoryMaxPagesKey, def.Limits.MaxMemoryPages)
	v.SetDefault(StackMaxHeightKey, def.Limits.MaxStackHeight)
	v.SetDefault(OutputMaxSizeKey, def.Limits.MaxOutputSize)
	v.SetDefault(CacheSizeKey, def.Cache.Size)
	v.SetDefault(LogLevelKey, def.Log.Level)
	v.SetDefault(LogFileKey, def.Log.File)
	v.SetDefault(LogDebugKey, def.Log.Debug)
	v.SetDefault(StorageBackendKey, def.Storage.Backend)
	v.SetDefault(StorageDirKey, def.Storage.Dir)
	v.SetDefault(MetricsEnabledKey, def.Metrics.Enabled)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds flags whose name matches a config key, such as --fuel.limit.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(f.Name, f)
		}
	})
	return err
}

// Load reads path, when set, on top of the defaults and returns the resulting config.
func Load(path string) (types.VMConfig, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return types.VMConfig{}, err
	}
	return FromViper(v)
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// FromViper assembles the config from v and validates it.
func FromViper(v *viper.Viper) (types.VMConfig, error) {
	cfg := types.VMConfig{
		Fuel: types.FuelOptions{
			Limit:    v.GetUint64(FuelLimitKey),
			Disabled: v.GetBool(FuelDisabledKey),
		},
		Limits: types.RuntimeLimits{
			MaxMemoryPages: v.GetUint32(MemoryMaxPagesKey),
			MaxStackHeight: v.GetUint32(StackMaxHeightKey),
			MaxOutputSize:  v.GetUint32(OutputMaxSizeKey),
		},
		Cache:   types.CacheOptions{Size: v.GetInt(CacheSizeKey)},
		Storage: types.StorageOptions{Backend: v.GetString(StorageBackendKey), Dir: v.GetString(StorageDirKey)},
		Log: types.LogOptions{
			Level: v.GetString(LogLevelKey),
			File:  v.GetString(LogFileKey),
			Debug: v.GetBool(LogDebugKey),
		},
		Metrics: types.MetricsOptions{Enabled: v.GetBool(MetricsEnabledKey)},
	}
	return cfg, Validate(cfg)
}

func Validate(cfg types.VMConfig) error {
	switch cfg.Storage.Backend {
	case "memdb":
	case "goleveldb":
		if cfg.Storage.Dir == "" {
			return fmt.Errorf("storage backend goleveldb needs %s", StorageDirKey)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage.Backend)
	}
	if cfg.Limits.MaxMemoryPages == 0 || cfg.Limits.MaxMemoryPages > 65536 {
		return fmt.Errorf("%s must be in [1, 65536], got %d", MemoryMaxPagesKey, cfg.Limits.MaxMemoryPages)
	}
	if cfg.Cache.Size < 0 {
		return fmt.Errorf("%s must not be negative", CacheSizeKey)
	}
	return nil
}
