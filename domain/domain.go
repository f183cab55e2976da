package domain

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/resource"
)

// Record describes one module living in a domain.
type Record struct {
	Module   api.Module
	Name     string
	Digest   string
	CodeBase string
	Location string
	Imports  []string
	Dynamic  bool
}

// Domain is an isolated code-loading context backed by one engine.
type Domain struct {
	id       uuid.UUID
	setup    Setup
	engine   *engine.Engine
	objects  *resource.Table
	byName   map[string]*Record
	modules  []*Record
	hooks    []hook
	locks    []io.Closer
	nextHook HookID
	mu       sync.RWMutex
	primary  bool
	unloaded atomic.Bool
}

var (
	primaryOnce sync.Once
	primary     *Domain
)

// New creates a domain with its own engine. The "isolate" host module is
// always installed, WASI only when the setup asks for it.
func New(ctx context.Context, setup *Setup) (*Domain, error) {
	if setup == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "setup", "setup is nil")
	}
	s := *setup
	if s.Name == "" {
		s.Name = GenerateName()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, s.engineConfig())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLifecycle, errors.KindInstantiation, err, "create engine")
	}
	d := newDomain(s, eng, false)
	if err := d.installHostModules(ctx); err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}
	logger().Debug("domain created",
		zap.String("id", d.id.String()),
		zap.String("name", s.Name),
		zap.String("base", s.ApplicationBase))
	return d, nil
}

// Adopt treats a runtime owned by the caller as a primary domain. The
// runtime is never closed through the returned domain.
func Adopt(ctx context.Context, rt wazero.Runtime, setup *Setup) (*Domain, error) {
	if rt == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "runtime", "runtime is nil")
	}
	s := DefaultSetup()
	if setup != nil {
		s = setup
	}
	d := newDomain(*s, engine.Adopt(rt), true)
	if err := d.installHostModules(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Primary returns the host's own domain. It is created on first use and
// never unloaded.
func Primary() *Domain {
	primaryOnce.Do(func() {
		ctx := context.Background()
		s := DefaultSetup()
		s.Name = "Primary"
		eng, err := engine.New(ctx, nil)
		if err != nil {
			panic("domain: create primary engine: " + err.Error())
		}
		primary = newDomain(*s, eng, true)
		if err := primary.installHostModules(ctx); err != nil {
			panic("domain: " + err.Error())
		}
	})
	return primary
}

func newDomain(s Setup, eng *engine.Engine, isPrimary bool) *Domain {
	d := &Domain{
		id:       uuid.New(),
		setup:    s,
		engine:   eng,
		objects:  resource.NewTable(),
		byName:   make(map[string]*Record),
		primary:  isPrimary,
		nextHook: 1,
	}
	d.objects.Subscribe(resource.ObserverFunc(d.logObject))
	return d
}

func (d *Domain) logObject(e resource.Event) {
	logger().Debug("remote object "+e.Type.String(),
		zap.String("domain", d.setup.Name),
		zap.String("kind", e.Kind),
		zap.Uint32("handle", uint32(e.Handle)))
}

func (d *Domain) installHostModules(ctx context.Context) error {
	if err := d.engine.InitHost(ctx); err != nil {
		return errors.Registration(errors.PhaseLifecycle, engine.HostModuleName, err)
	}
	d.recordDynamic(engine.HostModuleName)
	if d.setup.EnableWASI {
		if err := d.engine.InitWASI(ctx); err != nil {
			return errors.Registration(errors.PhaseLifecycle, engine.WASIModuleName, err)
		}
		d.recordDynamic(engine.WASIModuleName)
	}
	return nil
}

func (d *Domain) recordDynamic(name string) {
	mod := d.engine.Module(name)
	if mod == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byName[name]; ok {
		return
	}
	rec := &Record{Module: mod, Name: name, Dynamic: true}
	d.byName[name] = rec
	d.modules = append(d.modules, rec)
}

// ID returns the domain's unique id.
func (d *Domain) ID() uuid.UUID { return d.id }

// Name returns the configured name.
func (d *Domain) Name() string { return d.setup.Name }

// Setup returns a copy of the setup the domain was created with.
func (d *Domain) Setup() Setup { return d.setup }

// IsPrimary reports whether the domain belongs to the host and can never be
// unloaded.
func (d *Domain) IsPrimary() bool { return d.primary }

// IsUnloaded reports whether Unload completed.
func (d *Domain) IsUnloaded() bool { return d.unloaded.Load() }

// Engine returns the engine modules are loaded into.
func (d *Domain) Engine() *engine.Engine { return d.engine }

// Objects returns the table of objects activated inside the domain.
func (d *Domain) Objects() *resource.Table { return d.objects }

// Register records a loaded module. Names are unique within a domain.
func (d *Domain) Register(rec *Record) error {
	if rec == nil || rec.Name == "" {
		return errors.InvalidArgument(errors.PhaseLoad, "record", "record needs a name")
	}
	if d.unloaded.Load() {
		return errors.Disposed("domain " + d.setup.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byName[rec.Name]; ok {
		return errors.New(errors.PhaseLoad, errors.KindRegistration).
			Path(rec.Name).
			Detail("module already registered").
			Build()
	}
	d.byName[rec.Name] = rec
	d.modules = append(d.modules, rec)
	return nil
}

// Lookup returns the record of the module loaded under name.
func (d *Domain) Lookup(name string) (*Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byName[name]
	return rec, ok
}

// Modules returns every module recorded in the domain, in load order.
func (d *Domain) Modules() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, len(d.modules))
	for i, rec := range d.modules {
		out[i] = *rec
	}
	return out
}

// Hold keeps c open until the domain unloads. File locks taken while loading
// modules from disk are held this way.
func (d *Domain) Hold(c io.Closer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locks = append(d.locks, c)
}

// Call invokes an exported function of a loaded module.
func (d *Domain) Call(ctx context.Context, module, function string, params ...uint64) ([]uint64, error) {
	if d.unloaded.Load() {
		return nil, errors.Disposed("domain " + d.setup.Name)
	}
	rec, ok := d.Lookup(module)
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "module", module)
	}
	fn := rec.Module.ExportedFunction(function)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "function", module+"."+function)
	}
	res, err := fn.Call(WithDomain(ctx, d), params...)
	if err != nil {
		return nil, errors.New(errors.PhaseInvoke, errors.KindRemote).
			Path(module + "." + function).
			Cause(err).
			Build()
	}
	return res, nil
}

// Unload tears the domain down: activated objects are dropped, the engine
// closes every module, and held file locks are released. Primary domains
// refuse to unload. Calling Unload twice is a no-op.
func (d *Domain) Unload(ctx context.Context) error {
	if d.primary {
		return errors.New(errors.PhaseLifecycle, errors.KindInvalidArgument).
			Path(d.setup.Name).
			Detail("primary domain cannot be unloaded").
			Build()
	}
	if !d.unloaded.CompareAndSwap(false, true) {
		return nil
	}

	err := d.objects.Close()
	err = multierr.Append(err, d.engine.Close(ctx))

	d.mu.Lock()
	locks := d.locks
	d.locks = nil
	d.hooks = nil
	d.mu.Unlock()
	for _, l := range locks {
		err = multierr.Append(err, l.Close())
	}

	logger().Debug("domain unloaded",
		zap.String("id", d.id.String()),
		zap.String("name", d.setup.Name),
		zap.Int("locks", len(locks)),
		zap.Error(err))
	return err
}

func logger() *zap.Logger {
	return engine.Logger().Named("domain")
}
