package types

// VMConfig defines the configuration for the VM.
type VMConfig struct {
	Fuel    FuelOptions    `json:"fuel" mapstructure:"fuel"`
	Limits  RuntimeLimits  `json:"limits" mapstructure:"limits"`
	Cache   CacheOptions   `json:"cache" mapstructure:"cache"`
	Storage StorageOptions `json:"storage" mapstructure:"storage"`
	Log     LogOptions     `json:"log" mapstructure:"log"`
	Metrics MetricsOptions `json:"metrics" mapstructure:"metrics"`
}

type FuelOptions struct {
	// Limit is the fuel budget of a root invocation when the caller does not set one.
	Limit    uint64 `json:"limit" mapstructure:"limit"`
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
}

type RuntimeLimits struct {
	// MaxMemoryPages caps linear memory of every instance (64 KiB pages).
	MaxMemoryPages uint32 `json:"max_memory_pages" mapstructure:"max_memory_pages"`
	// MaxStackHeight caps the operand stack of the interpreter, in values.
	MaxStackHeight uint32 `json:"max_stack_height" mapstructure:"max_stack_height"`
	// MaxOutputSize caps the bytes a single invocation may write to its output.
	MaxOutputSize uint32 `json:"max_output_size" mapstructure:"max_output_size"`
}

type CacheOptions struct {
	// Size is the number of decoded modules kept in memory besides pinned ones.
	Size int `json:"size" mapstructure:"size"`
}

type StorageOptions struct {
	// Backend is a cometbft-db backend name: "memdb" or "goleveldb".
	Backend string `json:"backend" mapstructure:"backend"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

type LogOptions struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file" mapstructure:"file"`
	// Debug enables the _debug_log syscall.
	Debug bool `json:"debug" mapstructure:"debug"`
}

type MetricsOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DefaultVMConfig returns the configuration used when nothing is overridden.
func DefaultVMConfig() VMConfig {
	return VMConfig{
		Fuel: FuelOptions{
			Limit: 100_000_000,
		},
		Limits: RuntimeLimits{
			MaxMemoryPages: 1024,
			MaxStackHeight: 1 << 20,
			MaxOutputSize:  16 << 20,
		},
		Cache: CacheOptions{
			Size: 256,
		},
		Storage: StorageOptions{
			Backend: "memdb",
		},
		Log: LogOptions{
			Level: "info",
		},
	}
}
