package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rwasm-go/rwasmvm/internal/config"
	"github.com/rwasm-go/rwasmvm/types"
)

type cli struct {
	configPath string
	v          *viper.Viper
	cfg        types.VMConfig
	logger     zerolog.Logger
	logFile    io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}
	def := types.DefaultVMConfig()

	root := &cobra.Command{
		Use:           "rwasmvm",
		Short:         "Run and inspect rWASM contracts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.logFile != nil {
				return c.logFile.Close()
			}
			return nil
		},
	}

	fs := root.PersistentFlags()
	fs.StringVar(&c.configPath, "config", "", "config file (yaml, toml or json)")
	fs.Uint64(config.FuelLimitKey, def.Fuel.Limit, "fuel limit of a root call")
	fs.Bool(config.FuelDisabledKey, def.Fuel.Disabled, "disable fuel metering")
	fs.Uint32(config.MemoryMaxPagesKey, def.Limits.MaxMemoryPages, "linear memory limit in 64 KiB pages")
	fs.Int(config.CacheSizeKey, def.Cache.Size, "number of decoded modules kept in memory")
	fs.String(config.LogLevelKey, def.Log.Level, "log level")
	fs.String(config.LogFileKey, def.Log.File, "also write logs to this file, rotated")
	fs.Bool(config.LogDebugKey, def.Log.Debug, "print contract _debug_log messages")
	fs.String(config.StorageBackendKey, def.Storage.Backend, "storage backend: memdb or goleveldb")
	fs.String(config.StorageDirKey, def.Storage.Dir, "storage directory for goleveldb")
	fs.Bool(config.MetricsEnabledKey, def.Metrics.Enabled, "print runtime metrics after the run")

	root.AddCommand(newRunCmd(c), newInspectCmd(c), newHashCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.ReadFile(c.v, c.configPath); err != nil {
		return err
	}
	if err := config.BindFlags(c.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.FromViper(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: "15:04:05"}
	if cfg.Log.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		c.logFile = rotating
		out = zerolog.MultiLevelWriter(out, rotating)
	}
	c.logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

func readCode(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
