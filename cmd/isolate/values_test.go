package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-isolate/errors"
)

func TestEncodeParams(t *testing.T) {
	types := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64}
	got, err := encodeParams(types, []string{"-7", "0x10", "1.5", "2.25"})
	require.NoError(t, err)

	assert.Equal(t, int32(-7), api.DecodeI32(got[0]))
	assert.Equal(t, uint64(16), got[1])
	assert.Equal(t, float32(1.5), api.DecodeF32(got[2]))
	assert.Equal(t, 2.25, api.DecodeF64(got[3]))
}

func TestEncodeParams_UnsignedI32(t *testing.T) {
	got, err := encodeParams([]api.ValueType{api.ValueTypeI32}, []string{"4294967295"})
	require.NoError(t, err)
	assert.Equal(t, int32(-1), api.DecodeI32(got[0]))
}

func TestEncodeParams_Errors(t *testing.T) {
	_, err := encodeParams([]api.ValueType{api.ValueTypeI32}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = encodeParams([]api.ValueType{api.ValueTypeI32}, []string{"abc"})
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "arg0", e.Path)

	_, err = encodeParams([]api.ValueType{api.ValueTypeExternref}, []string{"1"})
	assert.Error(t, err)
}

func TestDecodeResults(t *testing.T) {
	got := decodeResults(
		[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64},
		[]uint64{api.EncodeI32(-3), api.EncodeI64(9), api.EncodeF32(0.5), api.EncodeF64(-1.25)},
	)
	assert.Equal(t, []string{"-3", "9", "0.5", "-1.25"}, got)
	assert.Equal(t, []string{"0xff"}, decodeResults([]api.ValueType{api.ValueTypeExternref}, []uint64{255}))
}
