// Package domain implements isolated code-loading contexts.
//
// A Domain owns one engine, so modules loaded into it share a namespace and
// are released together. Domains are created with New and torn down through
// a Disposable wrapper; the host's own domain (Primary, or one built with
// Adopt) is flagged primary and is never unloaded.
//
//	d, err := domain.New(ctx, &domain.Setup{ApplicationBase: "/opt/mods"})
//	w, err := domain.Wrap(d)
//	defer w.Close(ctx)
//
// Resolution hooks registered with AddResolveHook are asked for modules by
// import name when a load hits an import nothing has provided yet.
package domain
