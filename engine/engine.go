package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// WASIModuleName is the import module name of WASI preview1.
const WASIModuleName = wasi_snapshot_preview1.ModuleName

// Engine owns one wazero runtime. Every module instantiated through it shares
// one namespace, and closing the engine releases all of them at once.
type Engine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	owned        bool
	closed       atomic.Bool
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CompilationCacheDir persists compiled code between engines and processes.
	// Empty disables the on-disk cache.
	CompilationCacheDir string

	// CloseOnContextDone aborts running guest code when the calling context ends.
	CloseOnContextDone bool
}

// New creates an engine with its own wazero runtime.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	e := &Engine{owned: true}

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
		if cfg.CompilationCacheDir != "" {
			cache, err := wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
			if err != nil {
				return nil, fmt.Errorf("compilation cache %q: %w", cfg.CompilationCacheDir, err)
			}
			e.cache = cache
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	Logger().Debug("engine created",
		zap.Uint32("memory_limit_pages", limitPages(cfg)),
		zap.Bool("cache", e.cache != nil))
	return e, nil
}

// Adopt wraps a runtime the caller owns. Close on the returned engine is a
// no-op; the runtime stays alive until its owner closes it.
func Adopt(rt wazero.Runtime) *Engine {
	return &Engine{runtime: rt}
}

func limitPages(cfg *Config) uint32 {
	if cfg == nil {
		return 0
	}
	return cfg.MemoryLimitPages
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Owned reports whether Close tears the runtime down.
func (e *Engine) Owned() bool {
	return e.owned
}

// Closed reports whether Close has run on an owned engine.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Compile validates and compiles a module binary.
func (e *Engine) Compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("engine is closed")
	}
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	return compiled, nil
}

// Instantiate instantiates compiled under name. Start functions such as
// _start are not run; a module's start section still is.
func (e *Engine) Instantiate(ctx context.Context, compiled wazero.CompiledModule, name string) (api.Module, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("engine is closed")
	}
	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, err
	}
	debugf("instantiated module %q", name)
	return mod, nil
}

// Module returns the instantiated module registered under name, or nil.
func (e *Engine) Module(name string) api.Module {
	return e.runtime.Module(name)
}

// InitWASI instantiates WASI preview1 for this engine's runtime.
// Safe for concurrent calls.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(WASIModuleName) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		if e.runtime.Module(WASIModuleName) == nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// Close releases the runtime and every module in it. Engines created by
// Adopt are left untouched. Calling Close twice is a no-op.
func (e *Engine) Close(ctx context.Context) error {
	if !e.owned || !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		err = multierr.Append(err, e.cache.Close(ctx))
	}
	Logger().Debug("engine closed", zap.Error(err))
	return err
}
