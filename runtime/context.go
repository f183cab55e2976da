package runtime

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/remote"
)

// Context is an isolated execution context: a domain with a loader and a
// path resolver living inside it, plus an importer on the host side.
//
// Loads on one Context must not overlap. LoadModule swaps the resolver's
// strategy for the duration of the call, so concurrent loads see each
// other's strategy.
type Context struct {
	id       uuid.UUID
	wrapper  *domain.Disposable
	loader   *remote.Proxy[*linker.Linker]
	resolver *remote.Proxy[*linker.PathResolver]

	importer     *linker.PathResolver
	importerHost *domain.Domain
	importerHook domain.HookID
	resolverHook domain.HookID

	disposed atomic.Bool
}

// Create returns a context over a new domain with the default setup: a
// generated name and the executable's directory as both application base
// and private bin path.
func Create(ctx context.Context) (*Context, error) {
	return CreateWithSetup(ctx, domain.DefaultSetup())
}

// CreateWithSetup returns a context over a new domain built from setup. An
// empty name is replaced by a generated one. Closing the context unloads
// the domain.
func CreateWithSetup(ctx context.Context, setup *domain.Setup) (*Context, error) {
	if setup == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "setup", "setup is nil")
	}
	s := *setup
	if s.Name == "" {
		s.Name = domain.GenerateName()
	}
	d, err := domain.New(ctx, &s)
	if err != nil {
		return nil, err
	}
	w, err := domain.Wrap(d)
	if err != nil {
		return nil, multierr.Append(err, d.Unload(ctx))
	}
	return build(ctx, w, s, domain.Primary())
}

// Wrap returns a context over an existing domain. The context never
// unloads it.
func Wrap(ctx context.Context, d *domain.Domain) (*Context, error) {
	if d == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "domain", "domain is nil")
	}
	w, err := domain.Borrow(d)
	if err != nil {
		return nil, err
	}
	return build(ctx, w, d.Setup(), d)
}

// With creates a context from setup, runs fn, and closes the context on
// every exit path. A nil setup means the default one.
func With(ctx context.Context, setup *domain.Setup, fn func(*Context) error) (err error) {
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseLifecycle, "fn", "callback is nil")
	}
	if setup == nil {
		setup = domain.DefaultSetup()
	}
	c, err := CreateWithSetup(ctx, setup)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, c.Close(ctx))
	}()
	return fn(c)
}

func build(ctx context.Context, w *domain.Disposable, setup domain.Setup, host *domain.Domain) (_ *Context, err error) {
	c := &Context{id: uuid.New(), wrapper: w}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.Close(ctx))
		}
	}()

	c.importer = linker.NewPathResolver(linker.New(host), linker.LoadFromPath)
	c.importer.SetApplicationBase(setup.ApplicationBase)
	c.importer.SetPrivateBinPath(setup.PrivateBinPath)
	c.importerHost = host
	c.importerHook = host.AddResolveHook(c.importer.Resolve)

	if c.loader, err = remote.NewProxy[*linker.Linker](ctx, w); err != nil {
		return nil, err
	}
	if c.resolver, err = remote.NewProxy[*linker.PathResolver](ctx, w, linker.LoadFromPath); err != nil {
		return nil, err
	}
	res, err := c.resolver.RemoteObject()
	if err != nil {
		return nil, err
	}

	c.resolverHook, err = remote.Invoke1(ctx, w, func(ctx context.Context, r *linker.PathResolver) (domain.HookID, error) {
		return domain.Current(ctx).AddResolveHook(r.Resolve), nil
	}, res)
	if err != nil {
		return nil, err
	}
	res.SetApplicationBase(setup.ApplicationBase)
	res.SetPrivateBinPath(setup.PrivateBinPath)

	logger().Debug("context created",
		zap.String("id", c.id.String()),
		zap.String("domain", setup.Name),
		zap.Bool("owned", w.Owned()),
		zap.Strings("probe", res.ProbePaths()))
	return c, nil
}

// ID returns the context's unique id.
func (c *Context) ID() uuid.UUID { return c.id }

// IsDisposed reports whether Close has run.
func (c *Context) IsDisposed() bool { return c.disposed.Load() }

func (c *Context) check() error {
	if c.disposed.Load() {
		return errors.Disposed("context " + c.id.String())
	}
	return nil
}

// Domain returns the domain the context manages.
func (c *Context) Domain() (*domain.Domain, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.wrapper.Domain()
}

// Resolver returns the path resolver living inside the domain.
func (c *Context) Resolver() (*linker.PathResolver, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.resolver.RemoteObject()
}

// Importer returns the host-side resolver. It loads into the primary
// domain for created contexts and into the wrapped domain otherwise.
func (c *Context) Importer() (*linker.PathResolver, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.importer, nil
}

// Modules describes every module loaded into the domain.
func (c *Context) Modules(ctx context.Context) ([]linker.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	l, err := c.loader.RemoteObject()
	if err != nil {
		return nil, err
	}
	return remote.Invoke1(ctx, c.wrapper, func(ctx context.Context, l *linker.Linker) ([]linker.Descriptor, error) {
		return l.Modules(ctx)
	}, l)
}

// FindByCodeBase returns the loaded module whose codebase is codeBase. A
// plain path is converted to its file URL first.
func (c *Context) FindByCodeBase(ctx context.Context, codeBase string) (linker.Descriptor, bool, error) {
	if codeBase == "" {
		return linker.Descriptor{}, false, errors.InvalidArgument(errors.PhaseResolve, "codebase", "codebase is empty")
	}
	if !strings.HasPrefix(codeBase, "file:") {
		codeBase = linker.CodeBaseOf(codeBase)
	}
	return c.find(ctx, func(d linker.Descriptor) bool { return d.CodeBase() == codeBase })
}

// FindByLocation returns the loaded module backed by the file at location.
func (c *Context) FindByLocation(ctx context.Context, location string) (linker.Descriptor, bool, error) {
	if location == "" {
		return linker.Descriptor{}, false, errors.InvalidArgument(errors.PhaseResolve, "location", "location is empty")
	}
	return c.find(ctx, func(d linker.Descriptor) bool { return d.Location() == location })
}

// FindByFullName returns the loaded module whose ModuleName.FullName is
// fullName.
func (c *Context) FindByFullName(ctx context.Context, fullName string) (linker.Descriptor, bool, error) {
	if fullName == "" {
		return linker.Descriptor{}, false, errors.InvalidArgument(errors.PhaseResolve, "name", "full name is empty")
	}
	return c.find(ctx, func(d linker.Descriptor) bool { return d.Name().FullName() == fullName })
}

func (c *Context) find(ctx context.Context, match func(linker.Descriptor) bool) (linker.Descriptor, bool, error) {
	mods, err := c.Modules(ctx)
	if err != nil {
		return linker.Descriptor{}, false, err
	}
	for _, m := range mods {
		if match(m) {
			return m, true, nil
		}
	}
	return linker.Descriptor{}, false, nil
}

// swapStrategy points the in-domain resolver at s and returns a func that
// restores the previous strategy.
func (c *Context) swapStrategy(s linker.Strategy) (func(), error) {
	res, err := c.resolver.RemoteObject()
	if err != nil {
		return nil, err
	}
	prev := res.Strategy()
	res.SetStrategy(s)
	return func() { res.SetStrategy(prev) }, nil
}

// LoadModule loads the module at path into the domain. Imports it pulls in
// through the resolver are loaded with the same strategy. symbolPath is
// only used by linker.LoadFromBytes and may be empty.
func (c *Context) LoadModule(ctx context.Context, strategy linker.Strategy, path, symbolPath string) (linker.Descriptor, error) {
	if err := c.check(); err != nil {
		return linker.Descriptor{}, err
	}
	l, err := c.loader.RemoteObject()
	if err != nil {
		return linker.Descriptor{}, err
	}
	restore, err := c.swapStrategy(strategy)
	if err != nil {
		return linker.Descriptor{}, err
	}
	defer restore()

	desc, err := remote.Invoke4(ctx, c.wrapper,
		func(ctx context.Context, l *linker.Linker, s linker.Strategy, p, sym string) (linker.Descriptor, error) {
			return l.LoadModule(ctx, s, p, sym)
		}, l, strategy, path, symbolPath)
	if err != nil {
		return linker.Descriptor{}, err
	}
	logger().Debug("module loaded",
		zap.String("context", c.id.String()),
		zap.Stringer("module", desc.Name()),
		zap.Stringer("strategy", strategy))
	return desc, nil
}

// LoadModuleWithReferences loads the module at path and returns its
// descriptor followed by those of every module it imports from.
func (c *Context) LoadModuleWithReferences(ctx context.Context, strategy linker.Strategy, path string) ([]linker.Descriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	l, err := c.loader.RemoteObject()
	if err != nil {
		return nil, err
	}
	restore, err := c.swapStrategy(strategy)
	if err != nil {
		return nil, err
	}
	defer restore()

	return remote.Invoke3(ctx, c.wrapper,
		func(ctx context.Context, l *linker.Linker, s linker.Strategy, p string) ([]linker.Descriptor, error) {
			return l.LoadModuleWithReferences(ctx, s, p)
		}, l, strategy, path)
}

func targetPath(target linker.Descriptor) (string, error) {
	if target.IsDynamic() {
		return "", errors.InvalidArgument(errors.PhaseLoad, "target", "module "+target.Name().Name+" has no codebase")
	}
	return target.Path(), nil
}

// LoadTarget loads the module a descriptor's codebase points at.
func (c *Context) LoadTarget(ctx context.Context, strategy linker.Strategy, target linker.Descriptor) (linker.Descriptor, error) {
	p, err := targetPath(target)
	if err != nil {
		return linker.Descriptor{}, err
	}
	return c.LoadModule(ctx, strategy, p, "")
}

// LoadTargetWithReferences is LoadModuleWithReferences for a descriptor.
func (c *Context) LoadTargetWithReferences(ctx context.Context, strategy linker.Strategy, target linker.Descriptor) ([]linker.Descriptor, error) {
	p, err := targetPath(target)
	if err != nil {
		return nil, err
	}
	return c.LoadModuleWithReferences(ctx, strategy, p)
}

// Call invokes an exported function of a loaded module inside the domain.
// Parameters and results use the wazero uint64 encoding.
func (c *Context) Call(ctx context.Context, module, function string, params ...uint64) ([]uint64, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return remote.Invoke3(ctx, c.wrapper,
		func(ctx context.Context, m, f string, p []uint64) ([]uint64, error) {
			return domain.Current(ctx).Call(ctx, m, f, p...)
		}, module, function, params)
}

// Close removes the resolution hooks, releases the loader and resolver,
// and closes the wrapper, which unloads the domain for created contexts.
// Subsequent calls are no-ops.
func (c *Context) Close(ctx context.Context) error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if c.importerHost != nil {
		c.importerHost.RemoveResolveHook(c.importerHook)
	}
	if c.resolverHook != 0 {
		if d, err := c.wrapper.Domain(); err == nil {
			d.RemoveResolveHook(c.resolverHook)
		}
	}

	var err error
	if c.resolver != nil {
		err = multierr.Append(err, c.resolver.Close(ctx))
	}
	if c.loader != nil {
		err = multierr.Append(err, c.loader.Close(ctx))
	}
	err = multierr.Append(err, c.wrapper.Close(ctx))
	c.importer = nil

	logger().Debug("context closed",
		zap.String("id", c.id.String()),
		zap.Error(err))
	return err
}
