package linker_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/remote"
)

func TestModuleName_FullName(t *testing.T) {
	tests := []struct {
		name linker.ModuleName
		want string
	}{
		{linker.ModuleName{Name: "math"}, "math"},
		{linker.ModuleName{Name: "math", Digest: "abc"}, "math, sha256=abc"},
		{linker.ModuleName{Name: "math", Digest: "0123456789abcdef0123"}, "math, sha256=0123456789abcdef"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.name.FullName())
		assert.Equal(t, tt.want, tt.name.String())
	}
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "math.wasm.gz", []byte("x"))

	desc, err := linker.FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "math", desc.Name().Name)
	assert.Equal(t, path, desc.Location())
	assert.Equal(t, path, desc.Path())
	assert.Equal(t, "file://"+filepath.ToSlash(path), desc.CodeBase())

	_, err = linker.FromPath(filepath.Join(dir, "missing.wasm"))
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = linker.FromPath(dir)
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = linker.FromPath("")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNewDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.wasm", []byte("x"))

	_, err := linker.NewDescriptor(linker.CodeBaseOf(path), "", linker.ModuleName{Name: "a"})
	require.NoError(t, err)

	_, err = linker.NewDescriptor(path, "", linker.ModuleName{Name: "a"})
	require.NoError(t, err, "plain paths are accepted as codebase")

	_, err = linker.NewDescriptor(linker.CodeBaseOf(path), filepath.Join(dir, "gone.wasm"), linker.ModuleName{Name: "a"})
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	_, err = linker.NewDescriptor("", "", linker.ModuleName{Name: "a"})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestFromRecord(t *testing.T) {
	dyn := linker.FromRecord(domain.Record{Name: "isolate", Dynamic: true})
	assert.True(t, dyn.IsDynamic())
	assert.Empty(t, dyn.CodeBase())
	assert.Empty(t, dyn.Path())
	assert.Equal(t, "isolate (dynamic)", dyn.String())

	rec := linker.FromRecord(domain.Record{Name: "m", Digest: "ff", CodeBase: "file:///x/m.wasm", Location: "/x/m.wasm"})
	assert.False(t, rec.IsDynamic())
	assert.Equal(t, "m, sha256=ff @ file:///x/m.wasm", rec.String())
}

func TestDescriptor_CrossesByCopy(t *testing.T) {
	path := writeFile(t, t.TempDir(), "math.wasm", []byte("x"))
	desc, err := linker.FromPath(path)
	require.NoError(t, err)

	got, err := remote.Copy(desc)
	require.NoError(t, err)
	assert.Equal(t, desc, got)

	descs, err := remote.Copy([]linker.Descriptor{desc, linker.DynamicDescriptor(linker.ModuleName{Name: "isolate"})})
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.True(t, descs[1].IsDynamic())
}

func TestDescriptor_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "math.wasm", []byte("x"))
	desc, err := linker.FromPath(path)
	require.NoError(t, err)

	b, err := json.Marshal(desc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":{"name":"math"}`)
	assert.NotContains(t, string(b), "dynamic")

	var back linker.Descriptor
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, desc, back)
}

func TestPathOf(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dir with space", "m.wasm")
	assert.Equal(t, p, linker.PathOf(linker.CodeBaseOf(p)))
	assert.Equal(t, "relative/m.wasm", linker.PathOf("relative/m.wasm"))
}

func TestModuleNameOf(t *testing.T) {
	for in, want := range map[string]string{
		"/a/b/math.wasm":    "math",
		"/a/b/math.wasm.gz": "math",
		"math.v2.wasm":      "math.v2",
		"noext":             "noext",
		"lib.so":            "lib",
	} {
		assert.Equal(t, want, linker.ModuleNameOf(in), in)
	}
}

func TestStrategy(t *testing.T) {
	for _, s := range []linker.Strategy{linker.LoadFromPath, linker.LoadIndependentCopy, linker.LoadFromBytes} {
		got, err := linker.ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)

		text, err := s.MarshalText()
		require.NoError(t, err)
		var back linker.Strategy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
		assert.True(t, s.Valid())
	}

	got, err := linker.ParseStrategy(" LoadFromBytes ")
	require.NoError(t, err)
	assert.Equal(t, linker.LoadFromBytes, got)

	_, err = linker.ParseStrategy("mmap")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	assert.False(t, linker.Strategy(9).Valid())
	assert.Equal(t, "unknown", linker.Strategy(9).String())
}
