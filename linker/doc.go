// Package linker loads WebAssembly modules into a domain and resolves their
// imports by name.
//
// # Strategies
//
//   - LoadFromPath: the file stays open with a shared advisory lock until
//     the domain unloads. Location is the absolute path.
//   - LoadIndependentCopy: the file is read once. Location is empty.
//   - LoadFromBytes: like LoadIndependentCopy, plus an optional symbol file
//     whose custom sections are appended to the module.
//
// Files ending in .gz are gunzipped first. A module is named after its file
// stem, and a domain holds at most one module per name.
//
// # Resolution
//
// When a module imports from a module the domain does not hold yet, the
// domain's resolution hooks are asked for it. PathResolver is the standard
// hook: it probes its directories for <name>.wasm and <name>.wasm.gz and
// loads the first hit with its active strategy.
//
//	d, _ := domain.New(ctx, &domain.Setup{ApplicationBase: dir})
//	r := linker.NewPathResolver(linker.New(d), linker.LoadFromPath)
//	r.SetApplicationBase(dir)
//	d.AddResolveHook(r.Resolve)
//	desc, err := r.Loader().LoadModule(ctx, linker.LoadFromPath, "app.wasm", "")
//
// Linker and PathResolver embed remote.Object and so cross domain
// boundaries by reference. Descriptor is a plain value and crosses by copy.
package linker
