// Package engine wraps one wazero runtime per isolated context.
//
// An Engine is the code-loading boundary: modules compiled and instantiated
// through it share a namespace, resolve imports against each other by module
// name, and are released together when the engine closes.
//
//	e, err := engine.New(ctx, &engine.Config{MemoryLimitPages: 256})
//	compiled, err := e.Compile(ctx, bin)
//	mod, err := e.Instantiate(ctx, compiled, "math")
//	defer e.Close(ctx)
//
// Adopt wraps a runtime owned elsewhere; closing such an engine does nothing.
//
// InitHost installs the "isolate" host module so guests can log through the
// engine logger, and InitWASI installs wasi_snapshot_preview1.
package engine
