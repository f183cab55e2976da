package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/runtime"
)

var rootCmd = &cobra.Command{
	Use:   "isolate",
	Short: "Load WebAssembly modules into isolated contexts",
	Long: `isolate creates an isolated context (its own wazero runtime), loads
modules into it with a chosen strategy, resolves their imports from probe
directories, and calls their exports.

Configuration comes from isolate.yaml, ISOLATE_* environment variables and
flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg.Log)
		if err != nil {
			return err
		}
		runtime.SetLogger(log)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is ./isolate.yaml)")
	flags.StringP("base", "b", "", "application base directory (default is the module's directory)")
	flags.String("bin", "", "private bin path, a list of extra probe directories")
	flags.StringP("strategy", "s", "", "load strategy: path, copy or bytes")
	flags.Bool("wasi", false, "make wasi_snapshot_preview1 available to modules")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("json", false, "print JSON instead of text")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("domain.application_base", flags.Lookup("base"))
	_ = viper.BindPFlag("domain.private_bin_path", flags.Lookup("bin"))
	_ = viper.BindPFlag("strategy", flags.Lookup("strategy"))
	_ = viper.BindPFlag("domain.enable_wasi", flags.Lookup("wasi"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("output.json", flags.Lookup("json"))

	rootCmd.AddCommand(loadCmd, refsCmd, modulesCmd, callCmd, browseCmd)
}

// withContext runs fn inside a fresh context configured for modulePath.
func withContext(ctx context.Context, modulePath string, fn func(*runtime.Context, *Config, linker.Strategy) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	strategy, err := cfg.strategy()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(modulePath)
	if err != nil {
		return err
	}
	return runtime.With(ctx, cfg.setupFor(abs), func(c *runtime.Context) error {
		return fn(c, cfg, strategy)
	})
}
