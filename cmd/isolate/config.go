package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
)

// Config is the CLI configuration, read from isolate.yaml, ISOLATE_* env
// vars and flags, in increasing order of precedence.
type Config struct {
	Domain   domain.Setup `mapstructure:"domain"`
	Strategy string       `mapstructure:"strategy"`
	Log      LogConfig    `mapstructure:"log"`
	Output   OutputConfig `mapstructure:"output"`
}

// LogConfig controls the zap logger handed to the library packages.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Development switches to zap's console encoder.
	Development bool `mapstructure:"development"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	JSON bool `mapstructure:"json"`
}

func setDefaults() {
	viper.SetDefault("domain.name", "")
	viper.SetDefault("domain.application_base", "")
	viper.SetDefault("domain.private_bin_path", "")
	viper.SetDefault("domain.memory_limit_pages", 0)
	viper.SetDefault("domain.compilation_cache_dir", "")
	viper.SetDefault("domain.enable_wasi", false)
	viper.SetDefault("strategy", linker.LoadFromPath.String())
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.development", false)
	viper.SetDefault("output.json", false)
}

// configErr holds the failure of the last initConfig run; cobra's
// initializers cannot return one.
var configErr error

func initConfig() {
	setDefaults()
	configErr = readConfig(viper.GetViper(), viper.GetString("config"))
}

// readConfig reads cfgFile, or isolate.yaml from the working directory and
// the user config dir when cfgFile is empty. Only a missing isolate.yaml is
// tolerated; a file named explicitly must exist and parse.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("isolate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "isolate"))
		}
	}

	v.SetEnvPrefix("ISOLATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if cfgFile == "" && errors.As(err, &notFound) {
		return nil
	}
	return errors.Wrap(errors.PhaseConfig, errors.KindInvalidArgument, err, "read configuration")
}

func loadConfig() (*Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidArgument, err, "decode configuration")
	}
	return &cfg, nil
}

// strategy parses the configured load strategy.
func (c *Config) strategy() (linker.Strategy, error) {
	return linker.ParseStrategy(c.Strategy)
}

// setupFor returns the domain setup for loading modulePath. Without a
// configured application base the module's own directory is used.
func (c *Config) setupFor(modulePath string) *domain.Setup {
	s := c.Domain
	if s.ApplicationBase == "" {
		s.ApplicationBase = filepath.Dir(modulePath)
	}
	return &s
}

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.InvalidArgument(errors.PhaseConfig, "log.level", err.Error())
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
