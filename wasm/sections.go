package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	// ErrNotModule is returned for input without the wasm magic and version.
	ErrNotModule = errors.New("wasm: not a core module binary")
	// ErrNotCustom is returned when a symbol blob contains a non-custom section.
	ErrNotCustom = errors.New("wasm: symbol data may only contain custom sections")
)

// Section is one top-level section of a module binary. Name is set only for
// custom sections, and Payload then excludes the name.
type Section struct {
	ID      byte
	Name    string
	Payload []byte
}

// IsModule reports whether b starts with a core module header.
func IsModule(b []byte) bool {
	return len(b) >= headerSize &&
		binary.LittleEndian.Uint32(b[0:4]) == Magic &&
		binary.LittleEndian.Uint32(b[4:8]) == Version
}

// ParseSections splits a module binary into its sections without decoding
// their contents.
func ParseSections(b []byte) ([]Section, error) {
	if !IsModule(b) {
		return nil, ErrNotModule
	}
	return readSections(bytes.NewReader(b[headerSize:]))
}

// ParseCustomSections decodes symbol data: a sequence of custom sections,
// optionally preceded by a module header.
func ParseCustomSections(b []byte) ([]Section, error) {
	if IsModule(b) {
		b = b[headerSize:]
	}
	secs, err := readSections(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	for _, s := range secs {
		if s.ID != SectionCustom {
			return nil, fmt.Errorf("%w: found section id %d", ErrNotCustom, s.ID)
		}
	}
	return secs, nil
}

// CustomSections returns the custom sections of a module binary in order.
func CustomSections(b []byte) ([]Section, error) {
	secs, err := ParseSections(b)
	if err != nil {
		return nil, err
	}
	var out []Section
	for _, s := range secs {
		if s.ID == SectionCustom {
			out = append(out, s)
		}
	}
	return out, nil
}

// AppendCustomSections returns a copy of module with secs appended. Custom
// sections may appear anywhere, so appending keeps the module valid.
func AppendCustomSections(module []byte, secs []Section) ([]byte, error) {
	if !IsModule(module) {
		return nil, ErrNotModule
	}
	var buf bytes.Buffer
	buf.Grow(len(module))
	buf.Write(module)
	for _, s := range secs {
		if s.ID != SectionCustom {
			return nil, fmt.Errorf("%w: found section id %d", ErrNotCustom, s.ID)
		}
		writeSection(&buf, s)
	}
	return buf.Bytes(), nil
}

// EncodeSections encodes secs without a module header, the layout expected
// for standalone symbol files.
func EncodeSections(secs ...Section) []byte {
	var buf bytes.Buffer
	for _, s := range secs {
		writeSection(&buf, s)
	}
	return buf.Bytes()
}

func writeSection(w *bytes.Buffer, s Section) {
	w.WriteByte(s.ID)
	if s.ID != SectionCustom {
		WriteLEB128u(w, uint32(len(s.Payload)))
		w.Write(s.Payload)
		return
	}
	var body bytes.Buffer
	writeName(&body, s.Name)
	body.Write(s.Payload)
	WriteLEB128u(w, uint32(body.Len()))
	w.Write(body.Bytes())
}

func readSections(r *bytes.Reader) ([]Section, error) {
	var secs []Section
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("section %d: %w", id, io.ErrUnexpectedEOF)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		sec := Section{ID: id, Payload: payload}
		if id == SectionCustom {
			pr := bytes.NewReader(payload)
			name, err := readName(pr)
			if err != nil {
				return nil, fmt.Errorf("custom section name: %w", err)
			}
			if !utf8.ValidString(name) {
				return nil, fmt.Errorf("custom section name %q is not valid UTF-8", name)
			}
			sec.Name = name
			sec.Payload = payload[len(payload)-pr.Len():]
		}
		secs = append(secs, sec)
	}
	return secs, nil
}
