package linker_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/wasm"
)

var binop = wasm.FuncType{
	Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
	Results: []wasm.ValType{wasm.ValI32},
}

var unop = wasm.FuncType{
	Params:  []wasm.ValType{wasm.ValI32},
	Results: []wasm.ValType{wasm.ValI32},
}

// mathModule exports add(a, b).
func mathModule() []byte {
	b := wasm.NewBuilder()
	add := b.Func(binop, nil, wasm.Code(wasm.LocalGet(0), wasm.LocalGet(1), []byte{wasm.OpI32Add})...)
	b.ExportFunc("add", add)
	return b.Bytes()
}

// appModule imports math.add and exports twice(x) = add(x, x).
func appModule() []byte {
	b := wasm.NewBuilder()
	add := b.ImportFunc("math", "add", binop)
	twice := b.Func(unop, nil, wasm.Code(wasm.LocalGet(0), wasm.LocalGet(0), wasm.Call(add))...)
	b.ExportFunc("twice", twice)
	return b.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newDomain(t *testing.T) *domain.Domain {
	t.Helper()
	ctx := context.Background()
	d, err := domain.New(ctx, &domain.Setup{ApplicationBase: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Unload(ctx) })
	return d
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	linker.SetLogger(zap.New(core))
	t.Cleanup(func() { linker.SetLogger(nil) })
	return logs
}

func TestLoadModule_Strategies(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "math.wasm", mathModule())

	tests := []struct {
		strategy     linker.Strategy
		wantLocation string
	}{
		{linker.LoadFromPath, path},
		{linker.LoadIndependentCopy, ""},
		{linker.LoadFromBytes, ""},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			d := newDomain(t)
			desc, err := linker.New(d).LoadModule(ctx, tt.strategy, path, "")
			require.NoError(t, err)

			assert.Equal(t, "math", desc.Name().Name)
			assert.Len(t, desc.Name().Digest, 64)
			assert.Equal(t, linker.CodeBaseOf(path), desc.CodeBase())
			assert.Equal(t, path, desc.Path())
			assert.Equal(t, tt.wantLocation, desc.Location())
			assert.False(t, desc.IsDynamic())

			res, err := d.Call(ctx, "math", "add", api.EncodeI32(2), api.EncodeI32(3))
			require.NoError(t, err)
			assert.Equal(t, int32(5), api.DecodeI32(res[0]))
		})
	}
}

func TestLoadModule_OnePerName(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	l := linker.New(d)
	path := writeFile(t, t.TempDir(), "math.wasm", mathModule())

	first, err := l.LoadModule(ctx, linker.LoadFromPath, path, "")
	require.NoError(t, err)
	second, err := l.LoadModule(ctx, linker.LoadIndependentCopy, path, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	mods, err := l.Modules(ctx)
	require.NoError(t, err)
	var count int
	for _, m := range mods {
		if m.Name().Name == "math" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoadModule_SameNameOtherFile(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	l := linker.New(d)
	first := writeFile(t, t.TempDir(), "math.wasm", mathModule())
	_, err := l.LoadModule(ctx, linker.LoadFromPath, first, "")
	require.NoError(t, err)

	missing := filepath.Join(t.TempDir(), "nowhere", "math.wasm")
	for _, s := range []linker.Strategy{linker.LoadFromPath, linker.LoadIndependentCopy, linker.LoadFromBytes} {
		_, err = l.LoadModule(ctx, s, missing, "")
		assert.ErrorIs(t, err, errors.ErrFileNotFound, s.String())
	}

	other := writeFile(t, t.TempDir(), "math.wasm", mathModule())
	_, err = l.LoadModule(ctx, linker.LoadFromBytes, other, "")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindRegistration, e.Kind)
	assert.Equal(t, other, e.Path)
	assert.Contains(t, e.Detail, first)

	_, err = l.LoadModule(ctx, linker.LoadIndependentCopy, writeFile(t, t.TempDir(), "isolate.wasm", mathModule()), "")
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindRegistration, e.Kind)
	assert.Contains(t, e.Detail, "host module")

	mods, err := l.Modules(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, first, mods[1].Location())
}

func TestLoadModule_Gzip(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	path := writeFile(t, t.TempDir(), "math.wasm.gz", gzipped(t, mathModule()))

	desc, err := linker.New(d).LoadModule(ctx, linker.LoadIndependentCopy, path, "")
	require.NoError(t, err)
	assert.Equal(t, "math", desc.Name().Name)
}

func TestLoadModule_Errors(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	l := linker.New(d)
	dir := t.TempDir()

	_, err := l.LoadModule(ctx, linker.LoadFromPath, filepath.Join(dir, "missing.wasm"), "")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = l.LoadModule(ctx, linker.LoadIndependentCopy, filepath.Join(dir, "missing.wasm"), "")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = l.LoadModule(ctx, linker.LoadFromPath, "", "")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = l.LoadModule(ctx, linker.Strategy(42), writeFile(t, dir, "x.wasm", mathModule()), "")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	junk := writeFile(t, dir, "junk.wasm", []byte("not wasm"))
	_, err = l.LoadModule(ctx, linker.LoadFromBytes, junk, "")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindInvalidData, e.Kind)

	require.NoError(t, d.Unload(ctx))
	_, err = l.LoadModule(ctx, linker.LoadFromPath, junk, "")
	assert.ErrorIs(t, err, errors.ErrDisposed)
	_, err = l.Modules(ctx)
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestLoadModule_Symbols(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "math.wasm", mathModule())
	syms := writeFile(t, dir, "math.sym", wasm.EncodeSections(wasm.NameSection(wasm.Names{
		Module:    "math",
		Functions: map[uint32]string{0: "add"},
	})))

	plain, err := linker.New(newDomain(t)).LoadModule(ctx, linker.LoadFromBytes, path, "")
	require.NoError(t, err)

	withSyms, err := linker.New(newDomain(t)).LoadModule(ctx, linker.LoadFromBytes, path, syms)
	require.NoError(t, err)
	assert.NotEqual(t, plain.Name().Digest, withSyms.Name().Digest)

	ignored, err := linker.New(newDomain(t)).LoadModule(ctx, linker.LoadIndependentCopy, path, syms)
	require.NoError(t, err)
	assert.Equal(t, plain.Name().Digest, ignored.Name().Digest, "only LoadFromBytes reads symbols")
}

func TestLoadModule_BadSymbols(t *testing.T) {
	ctx := context.Background()
	logs := observe(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "math.wasm", mathModule())

	plain, err := linker.New(newDomain(t)).LoadModule(ctx, linker.LoadFromBytes, path, "")
	require.NoError(t, err)

	for name, symPath := range map[string]string{
		"missing": filepath.Join(dir, "nope.sym"),
		"garbage": writeFile(t, dir, "garbage.sym", []byte{0x01, 0xff, 0xff}),
		// a type section is not a custom section
		"code": writeFile(t, dir, "code.sym", wasm.EncodeSections(wasm.Section{ID: wasm.SectionType, Payload: []byte{0}})),
	} {
		t.Run(name, func(t *testing.T) {
			desc, err := linker.New(newDomain(t)).LoadModule(ctx, linker.LoadFromBytes, path, symPath)
			require.NoError(t, err)
			assert.Equal(t, plain.Name().Digest, desc.Name().Digest)
		})
	}
	assert.Equal(t, 3, logs.FilterMessage("loading without symbols").Len())
}

func TestLoadModule_MissingImports(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	path := writeFile(t, t.TempDir(), "app.wasm", appModule())

	_, err := linker.New(d).LoadModule(ctx, linker.LoadFromPath, path, "")
	var missing *errors.MissingImportsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "app", missing.Module)
	assert.Equal(t, []string{"math"}, missing.Imports)

	_, ok := d.Lookup("app")
	assert.False(t, ok)
}

func TestLoadModule_ResolvesThroughHooks(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	libs := t.TempDir()
	writeFile(t, libs, "math.wasm.gz", gzipped(t, mathModule()))
	app := writeFile(t, t.TempDir(), "app.wasm", appModule())

	r := linker.NewPathResolver(linker.New(d), linker.LoadIndependentCopy)
	r.SetApplicationBase(libs)
	d.AddResolveHook(r.Resolve)

	descs, err := r.Loader().LoadModuleWithReferences(ctx, linker.LoadFromPath, app)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "app", descs[0].Name().Name)
	assert.Equal(t, app, descs[0].Location())
	assert.Equal(t, "math", descs[1].Name().Name)
	assert.Empty(t, descs[1].Location(), "dependency uses the resolver's strategy")

	res, err := d.Call(ctx, "app", "twice", api.EncodeI32(21))
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))
}

func TestLoadModule_ForeignModuleDoesNotLink(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	other := newDomain(t)
	mathPath := writeFile(t, t.TempDir(), "math.wasm", mathModule())
	_, err := linker.New(other).LoadModule(ctx, linker.LoadIndependentCopy, mathPath, "")
	require.NoError(t, err)

	d.AddResolveHook(func(ctx context.Context, name string) (api.Module, bool, error) {
		mod := other.Engine().Module(name)
		return mod, mod != nil, nil
	})

	app := writeFile(t, t.TempDir(), "app.wasm", appModule())
	_, err = linker.New(d).LoadModule(ctx, linker.LoadFromPath, app, "")
	var missing *errors.MissingImportsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"math"}, missing.Imports)
}

func TestModules_IncludesHostModules(t *testing.T) {
	ctx := context.Background()
	d := newDomain(t)
	l := linker.New(d)
	_, err := l.LoadModule(ctx, linker.LoadIndependentCopy, writeFile(t, t.TempDir(), "math.wasm", mathModule()), "")
	require.NoError(t, err)

	mods, err := l.Modules(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, engine.HostModuleName, mods[0].Name().Name)
	assert.True(t, mods[0].IsDynamic())
	assert.Empty(t, mods[0].CodeBase())
	assert.Equal(t, "math", mods[1].Name().Name)
}
