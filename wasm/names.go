package wasm

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Names is the decoded content of a "name" custom section.
type Names struct {
	Module    string
	Functions map[uint32]string
}

// NameSection encodes n as a "name" custom section.
func NameSection(n Names) Section {
	var body bytes.Buffer
	if n.Module != "" {
		var sub bytes.Buffer
		writeName(&sub, n.Module)
		body.WriteByte(NameSubsectionModule)
		WriteLEB128u(&body, uint32(sub.Len()))
		body.Write(sub.Bytes())
	}
	if len(n.Functions) > 0 {
		idx := make([]uint32, 0, len(n.Functions))
		for i := range n.Functions {
			idx = append(idx, i)
		}
		sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })

		var sub bytes.Buffer
		WriteLEB128u(&sub, uint32(len(idx)))
		for _, i := range idx {
			WriteLEB128u(&sub, i)
			writeName(&sub, n.Functions[i])
		}
		body.WriteByte(NameSubsectionFunction)
		WriteLEB128u(&body, uint32(sub.Len()))
		body.Write(sub.Bytes())
	}
	return Section{ID: SectionCustom, Name: "name", Payload: body.Bytes()}
}

// ParseNames decodes the payload of a "name" custom section. Unknown
// subsections are skipped.
func ParseNames(payload []byte) (Names, error) {
	out := Names{Functions: map[uint32]string{}}
	r := bytes.NewReader(payload)
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		size, err := ReadLEB128u(r)
		if err != nil {
			return Names{}, fmt.Errorf("name subsection %d: %w", id, err)
		}
		if int(size) > r.Len() {
			return Names{}, fmt.Errorf("name subsection %d: %w", id, io.ErrUnexpectedEOF)
		}
		sub := make([]byte, size)
		_, _ = io.ReadFull(r, sub)
		sr := bytes.NewReader(sub)

		switch id {
		case NameSubsectionModule:
			if out.Module, err = readName(sr); err != nil {
				return Names{}, fmt.Errorf("module name: %w", err)
			}
		case NameSubsectionFunction:
			count, err := ReadLEB128u(sr)
			if err != nil {
				return Names{}, fmt.Errorf("function names: %w", err)
			}
			for range count {
				i, err := ReadLEB128u(sr)
				if err != nil {
					return Names{}, fmt.Errorf("function index: %w", err)
				}
				name, err := readName(sr)
				if err != nil {
					return Names{}, fmt.Errorf("function %d name: %w", i, err)
				}
				out.Functions[i] = name
			}
		}
	}
	return out, nil
}
