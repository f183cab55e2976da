package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrOverflow is returned when a LEB128 value exceeds the maximum bit width.
var ErrOverflow = errors.New("leb128: overflow")

// ReadLEB128u reads an unsigned 32-bit LEB128 value. Unsigned LEB128 is the
// same encoding as encoding/binary's uvarint.
func ReadLEB128u(r io.ByteReader) (uint32, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, err
		}
		return 0, ErrOverflow
	}
	if v > math.MaxUint32 {
		return 0, ErrOverflow
	}
	return uint32(v), nil
}

// WriteLEB128u writes an unsigned LEB128 value.
func WriteLEB128u(w *bytes.Buffer, v uint32) {
	w.Write(binary.AppendUvarint(nil, uint64(v)))
}

// WriteLEB128s writes a signed LEB128 value.
func WriteLEB128s(w *bytes.Buffer, v int32) {
	WriteLEB128s64(w, int64(v))
}

// WriteLEB128s64 writes a signed 64-bit LEB128 value.
func WriteLEB128s64(w *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		last := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !last {
			b |= 0x80
		}
		w.WriteByte(b)
		if last {
			return
		}
	}
}

func writeName(w *bytes.Buffer, s string) {
	WriteLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}

func readName(r *bytes.Reader) (string, error) {
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
