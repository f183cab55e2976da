// Package runtime manages isolated execution contexts.
//
// A Context owns a domain (its own wazero runtime), a linker and a path
// resolver activated inside that domain, and an importer resolver on the
// host side. Modules loaded through the context are resolved, instantiated
// and torn down with the domain.
//
//	c, err := runtime.CreateWithSetup(ctx, &domain.Setup{
//		ApplicationBase: "/opt/app/modules",
//		PrivateBinPath:  "/opt/app/lib",
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close(ctx)
//
//	desc, err := c.LoadModule(ctx, linker.LoadFromPath, "/opt/app/modules/app.wasm", "")
//	res, err := c.Call(ctx, desc.Name().Name, "run")
//
// With scopes a context to a callback:
//
//	err := runtime.With(ctx, setup, func(c *runtime.Context) error {
//		_, err := c.LoadModuleWithReferences(ctx, linker.LoadIndependentCopy, path)
//		return err
//	})
//
// Wrap puts a Context around a domain created elsewhere, including the
// primary one. Closing such a context leaves the domain loaded.
package runtime
