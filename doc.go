// Package isolate runs WebAssembly modules in isolated execution contexts.
//
// Each context owns a separate wazero runtime. Modules loaded into one
// context cannot see or link against modules of another, and a context
// releases everything it loaded when it is closed.
//
// # Architecture Overview
//
//	isolate/
//	├── runtime/         Context: create, load, find, call, close
//	├── linker/          Module loading strategies, descriptors, path resolver
//	├── domain/          Isolated domains, resolution hooks, disposable wrappers
//	├── remote/          Calls and objects that cross a domain boundary
//	├── engine/          wazero runtime per domain and the host module
//	├── resource/        Handle tables for values owned by a domain
//	├── wasm/            Core module binary helpers
//	├── errors/          Structured error types
//	└── cmd/isolate/     Command line front end
//
// # Quick Start
//
//	c, err := runtime.CreateWithSetup(ctx, &domain.Setup{ApplicationBase: dir})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	descs, err := c.LoadModuleWithReferences(ctx, linker.LoadFromPath, "app.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := c.Call(ctx, "app", "run")
//
// # Load Strategies
//
// LoadFromPath keeps a shared lock on the module file until the context is
// closed. LoadIndependentCopy reads the file into memory and leaves it
// unlocked. LoadFromBytes does the same and can attach a symbol file of
// custom sections.
//
// # Crossing the Boundary
//
// Values passed to remote.Invoke and its siblings are copied with
// encoding/gob. Types embedding remote.Object cross by reference instead.
package isolate
