package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-isolate/errors"
)

// encodeParams parses textual arguments into wazero's uint64 encoding.
func encodeParams(types []api.ValueType, args []string) ([]uint64, error) {
	if len(args) != len(types) {
		return nil, errors.InvalidArgument(errors.PhaseInvoke, "args",
			fmt.Sprintf("function takes %d argument(s), got %d", len(types), len(args)))
	}
	out := make([]uint64, len(types))
	for i, t := range types {
		v, err := encodeValue(t, args[i])
		if err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidArgument).
				Path(fmt.Sprintf("arg%d", i)).
				Value(args[i]).
				Cause(err).
				Detail("not a valid %s", api.ValueTypeName(t)).
				Build()
		}
		out[i] = v
	}
	return out, nil
}

func encodeValue(t api.ValueType, s string) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		v, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			// accept the unsigned range too
			u, uerr := strconv.ParseUint(s, 0, 32)
			if uerr != nil {
				return 0, err
			}
			return uint64(uint32(u)), nil
		}
		return api.EncodeI32(int32(v)), nil
	case api.ValueTypeI64:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			u, uerr := strconv.ParseUint(s, 0, 64)
			if uerr != nil {
				return 0, err
			}
			return u, nil
		}
		return api.EncodeI64(v), nil
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(v)), nil
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(v), nil
	}
	return 0, fmt.Errorf("unsupported value type %s", api.ValueTypeName(t))
}

// decodeResults renders results in their declared types.
func decodeResults(types []api.ValueType, res []uint64) []string {
	out := make([]string, len(res))
	for i, r := range res {
		t := api.ValueTypeI64
		if i < len(types) {
			t = types[i]
		}
		out[i] = decodeValue(t, r)
	}
	return out
}

func decodeValue(t api.ValueType, v uint64) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	}
	return "0x" + strconv.FormatUint(v, 16)
}

// placeholder is the text input hint for a value type.
func placeholder(t api.ValueType) string {
	switch t {
	case api.ValueTypeI32:
		return fmt.Sprintf("i32 (%d..%d)", math.MinInt32, math.MaxUint32)
	case api.ValueTypeI64:
		return "i64"
	case api.ValueTypeF32, api.ValueTypeF64:
		return api.ValueTypeName(t) + " (e.g. 1.5)"
	}
	return api.ValueTypeName(t)
}
