package linker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/remote"
	"github.com/wippyai/wasm-isolate/wasm"
)

// Linker loads modules into the domain it belongs to and reports what the
// domain holds. It crosses the boundary by reference; the descriptors it
// returns cross by copy.
type Linker struct {
	remote.Object
	domain *domain.Domain
}

func init() {
	remote.Register[*Linker](func(_ context.Context, d *domain.Domain, _ []any) (*Linker, error) {
		return New(d), nil
	})
}

// New returns a linker that loads into d.
func New(d *domain.Domain) *Linker {
	return &Linker{domain: d}
}

// Domain returns the domain modules are loaded into.
func (l *Linker) Domain() *domain.Domain { return l.domain }

// LoadModule loads the module at path with the given strategy and returns
// its descriptor. Imports are resolved through the domain's resolution
// hooks. Loading a file whose module is already present describes the
// existing module; a different file under an already loaded name is
// rejected with a registration error.
//
// symbolPath is only read by LoadFromBytes. Unreadable or malformed symbols
// are logged and skipped.
func (l *Linker) LoadModule(ctx context.Context, strategy Strategy, path, symbolPath string) (Descriptor, error) {
	rec, err := l.load(ctx, strategy, path, symbolPath)
	if err != nil {
		return Descriptor{}, err
	}
	return FromRecord(*rec), nil
}

// LoadModuleWithReferences loads the module at path and returns its
// descriptor followed by the descriptors of every module it imports from,
// depth first. A module imported along several paths appears once per path.
func (l *Linker) LoadModuleWithReferences(ctx context.Context, strategy Strategy, path string) ([]Descriptor, error) {
	rec, err := l.load(ctx, strategy, path, "")
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	l.collect(*rec, &out)
	return out, nil
}

func (l *Linker) collect(rec domain.Record, out *[]Descriptor) {
	*out = append(*out, FromRecord(rec))
	for _, imp := range rec.Imports {
		dep, ok := l.domain.Lookup(imp)
		if !ok {
			*out = append(*out, DynamicDescriptor(ModuleName{Name: imp}))
			continue
		}
		l.collect(*dep, out)
	}
}

// Modules describes every module recorded in the domain, in load order.
func (l *Linker) Modules(ctx context.Context) ([]Descriptor, error) {
	if l.domain.IsUnloaded() {
		return nil, errors.Disposed("domain " + l.domain.Name())
	}
	recs := l.domain.Modules()
	out := make([]Descriptor, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out, nil
}

func (l *Linker) load(ctx context.Context, strategy Strategy, path, symbolPath string) (*domain.Record, error) {
	if path == "" {
		return nil, errors.InvalidArgument(errors.PhaseLoad, "path", "path is empty")
	}
	if !strategy.Valid() {
		return nil, errors.InvalidArgument(errors.PhaseLoad, "strategy", "unknown load strategy")
	}
	d := l.domain
	if d.IsUnloaded() {
		return nil, errors.Disposed("domain " + d.Name())
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.FileNotFound(errors.PhaseLoad, path, err)
	}

	if err := mustExist(abs); err != nil {
		return nil, err
	}

	name := ModuleNameOf(abs)
	if rec, ok := d.Lookup(name); ok {
		if rec.CodeBase != CodeBaseOf(abs) {
			return nil, nameConflict(abs, rec)
		}
		Logger().Debug("module already loaded",
			zap.String("domain", d.Name()),
			zap.String("module", name),
			zap.String("path", abs))
		return rec, nil
	}

	var (
		lock *fileLock
		raw  []byte
	)
	if strategy == LoadFromPath {
		lock, err = openShared(abs)
		if err == nil {
			raw, err = io.ReadAll(lock.file)
		}
	} else {
		raw, err = os.ReadFile(abs)
	}
	if err != nil {
		_ = lock.Close()
		return nil, readError(abs, err)
	}

	bin, err := decode(abs, raw)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}
	if strategy == LoadFromBytes && symbolPath != "" {
		bin = attachSymbols(bin, symbolPath)
	}

	rec := &domain.Record{
		Name:     name,
		Digest:   digest(bin),
		CodeBase: CodeBaseOf(abs),
	}
	if strategy == LoadFromPath {
		rec.Location = abs
	}
	if err := l.instantiate(ctx, rec, bin); err != nil {
		_ = lock.Close()
		return nil, err
	}
	if lock != nil {
		d.Hold(lock)
	}

	Logger().Debug("module loaded",
		zap.String("domain", d.Name()),
		zap.String("module", name),
		zap.Stringer("strategy", strategy),
		zap.String("path", abs),
		zap.Strings("imports", rec.Imports))
	return rec, nil
}

func (l *Linker) instantiate(ctx context.Context, rec *domain.Record, bin []byte) error {
	d := l.domain
	eng := d.Engine()

	compiled, err := eng.Compile(ctx, bin)
	if err != nil {
		return errors.Load(PathOf(rec.CodeBase), "compile", err)
	}
	defer compiled.Close(ctx)

	ctx = domain.WithLoading(ctx, d, rec.Name)
	rec.Imports = engine.ImportModules(compiled)

	var missing []string
	for _, imp := range rec.Imports {
		_, ok, err := d.Resolve(ctx, imp)
		if err != nil {
			return err
		}
		// A hook may hand back a module living in another domain. Imports
		// only link within one engine, so that still counts as missing.
		if !ok || eng.Module(imp) == nil {
			missing = append(missing, imp)
		}
	}
	if len(missing) > 0 {
		return &errors.MissingImportsError{Module: rec.Name, Imports: missing}
	}

	mod, err := eng.Instantiate(ctx, compiled, rec.Name)
	if err != nil {
		return errors.Instantiation(rec.Name, err)
	}
	rec.Module = mod
	if err := d.Register(rec); err != nil {
		_ = mod.Close(ctx)
		return err
	}
	return nil
}

func nameConflict(path string, rec *domain.Record) error {
	other := "a host module"
	if !rec.Dynamic {
		other = PathOf(rec.CodeBase)
	}
	return errors.New(errors.PhaseLoad, errors.KindRegistration).
		Path(path).
		Detail("module %q is already loaded from %s", rec.Name, other).
		Build()
}

func readError(path string, err error) error {
	if os.IsNotExist(err) {
		return errors.FileNotFound(errors.PhaseLoad, path, err)
	}
	return errors.Load(path, "read module", err)
}

var gzipMagic = []byte{0x1f, 0x8b}

// decode unwraps gzip-compressed input and checks for a module header.
func decode(path string, raw []byte) ([]byte, error) {
	bin, err := gunzip(raw)
	if err != nil {
		return nil, errors.Load(path, "decompress", err)
	}
	if !wasm.IsModule(bin) {
		return nil, errors.Load(path, "not a wasm module", wasm.ErrNotModule)
	}
	return bin, nil
}

func gunzip(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, gzipMagic) {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// attachSymbols appends the custom sections stored in symbolPath to bin. On
// any failure bin is returned untouched.
func attachSymbols(bin []byte, symbolPath string) []byte {
	data, err := os.ReadFile(symbolPath)
	if err == nil {
		data, err = gunzip(data)
	}
	var secs []wasm.Section
	if err == nil {
		secs, err = wasm.ParseCustomSections(data)
	}
	var out []byte
	if err == nil {
		out, err = wasm.AppendCustomSections(bin, secs)
	}
	if err != nil {
		Logger().Warn("loading without symbols",
			zap.String("symbols", symbolPath),
			zap.Error(err))
		return bin
	}
	return out
}

func digest(bin []byte) string {
	sum := sha256.Sum256(bin)
	return hex.EncodeToString(sum[:])
}
