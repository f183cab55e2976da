package domain

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Setup configures a new domain.
type Setup struct {
	// Name is informational. Empty names are replaced with a generated one.
	Name string `mapstructure:"name"`

	// ApplicationBase is the first directory probed when resolving modules.
	ApplicationBase string `mapstructure:"application_base" validate:"required"`

	// PrivateBinPath holds extra probe directories, joined with
	// os.PathListSeparator.
	PrivateBinPath string `mapstructure:"private_bin_path"`

	// MemoryLimitPages caps linear memory per module instance (64KB pages).
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages" validate:"lte=65536"`

	// CompilationCacheDir enables wazero's on-disk compilation cache.
	CompilationCacheDir string `mapstructure:"compilation_cache_dir"`

	// EnableWASI makes wasi_snapshot_preview1 available to guests.
	EnableWASI bool `mapstructure:"enable_wasi"`
}

// DefaultSetup returns a setup with a generated name whose application base
// and private bin path are the directory of the running executable.
func DefaultSetup() *Setup {
	base := ExecutableDir()
	return &Setup{
		Name:            GenerateName(),
		ApplicationBase: base,
		PrivateBinPath:  base,
	}
}

// GenerateName returns a unique domain name.
func GenerateName() string {
	return "Temp-Domain-" + uuid.NewString()
}

// ExecutableDir returns the directory of the running executable, falling
// back to the working directory.
func ExecutableDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	wd, _ := os.Getwd()
	return wd
}

// Validate checks the setup's field constraints.
func (s *Setup) Validate() error {
	if s == nil {
		return errors.InvalidArgument(errors.PhaseConfig, "setup", "setup is nil")
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.New(errors.PhaseConfig, errors.KindInvalidArgument).
				Path(fe.Namespace()).
				Value(fe.Value()).
				Detail("failed %q constraint", fe.Tag()).
				Build()
		}
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidArgument, err, "setup validation")
	}
	return nil
}

func (s *Setup) engineConfig() *engine.Config {
	return &engine.Config{
		MemoryLimitPages:    s.MemoryLimitPages,
		CompilationCacheDir: s.CompilationCacheDir,
	}
}
