package remote

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/wippyai/wasm-isolate/errors"
)

// Copy returns v as the other side of the boundary sees it. Remotable values
// pass through unchanged; everything else is gob-encoded and decoded into a
// fresh value of the same dynamic type. Functions, channels and unsafe
// pointers cannot be copied.
func Copy[T any](v T) (T, error) {
	var zero T
	out, err := copyValue(any(v))
	if err != nil || out == nil {
		return zero, err
	}
	return out.(T), nil
}

func copyValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(Remotable); ok {
		return v, nil
	}

	rv := reflect.ValueOf(v)
	typ := rv.Type()
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, errors.Marshal(typ.String(), fmt.Sprintf("%s values cannot cross the boundary", rv.Kind()), nil)
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return reflect.Zero(typ).Interface(), nil
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).EncodeValue(rv); err != nil {
		return nil, errors.Marshal(typ.String(), "encode", err)
	}
	out := reflect.New(typ)
	if err := gob.NewDecoder(&buf).DecodeValue(out); err != nil {
		return nil, errors.Marshal(typ.String(), "decode", err)
	}
	return out.Elem().Interface(), nil
}

func copyArg[T any](pos int, v T) (T, error) {
	out, err := Copy(v)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			e.Path = fmt.Sprintf("arg%d", pos)
		}
		return out, err
	}
	return out, nil
}

func copyArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		c, err := copyArg(i, a)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
