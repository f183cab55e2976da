package wasm

import (
	"bytes"
	"encoding/binary"
	"slices"
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type funcDef struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

// Builder assembles small core modules. Imports must be added before any
// function is defined, since imported functions occupy the low indices.
type Builder struct {
	types   []FuncType
	imports []funcImport
	funcs   []funcDef
	exports []export
	memory  *uint32
	customs []Section
}

// NewBuilder returns an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) typeIndex(ft FuncType) uint32 {
	for i, t := range b.types {
		if slices.Equal(t.Params, ft.Params) && slices.Equal(t.Results, ft.Results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, ft)
	return uint32(len(b.types) - 1)
}

// ImportFunc declares an imported function and returns its function index.
func (b *Builder) ImportFunc(module, name string, ft FuncType) uint32 {
	b.imports = append(b.imports, funcImport{module: module, name: name, typeIdx: b.typeIndex(ft)})
	return uint32(len(b.imports) - 1)
}

// Func defines a function. body holds the instructions without the final end.
func (b *Builder) Func(ft FuncType, locals []ValType, body ...byte) uint32 {
	b.funcs = append(b.funcs, funcDef{typeIdx: b.typeIndex(ft), locals: locals, body: body})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// ExportFunc exports the function at idx under name.
func (b *Builder) ExportFunc(name string, idx uint32) *Builder {
	b.exports = append(b.exports, export{name: name, kind: KindFunc, idx: idx})
	return b
}

// Memory defines memory 0 with min pages and exports it when name is set.
func (b *Builder) Memory(minPages uint32, name string) *Builder {
	b.memory = &minPages
	if name != "" {
		b.exports = append(b.exports, export{name: name, kind: KindMemory, idx: 0})
	}
	return b
}

// Custom appends a custom section.
func (b *Builder) Custom(name string, payload []byte) *Builder {
	b.customs = append(b.customs, Section{ID: SectionCustom, Name: name, Payload: payload})
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, Magic)
	_ = binary.Write(&out, binary.LittleEndian, Version)

	if len(b.types) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(b.types)))
		for _, ft := range b.types {
			sec.WriteByte(FuncTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&out, Section{ID: SectionType, Payload: sec.Bytes()})
	}

	if len(b.imports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(b.imports)))
		for _, imp := range b.imports {
			writeName(&sec, imp.module)
			writeName(&sec, imp.name)
			sec.WriteByte(KindFunc)
			WriteLEB128u(&sec, imp.typeIdx)
		}
		writeSection(&out, Section{ID: SectionImport, Payload: sec.Bytes()})
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			WriteLEB128u(&sec, f.typeIdx)
		}
		writeSection(&out, Section{ID: SectionFunction, Payload: sec.Bytes()})
	}

	if b.memory != nil {
		var sec bytes.Buffer
		WriteLEB128u(&sec, 1)
		sec.WriteByte(0x00)
		WriteLEB128u(&sec, *b.memory)
		writeSection(&out, Section{ID: SectionMemory, Payload: sec.Bytes()})
	}

	if len(b.exports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(b.exports)))
		for _, e := range b.exports {
			writeName(&sec, e.name)
			sec.WriteByte(e.kind)
			WriteLEB128u(&sec, e.idx)
		}
		writeSection(&out, Section{ID: SectionExport, Payload: sec.Bytes()})
	}

	if len(b.funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(b.funcs)))
		for _, f := range b.funcs {
			var body bytes.Buffer
			WriteLEB128u(&body, uint32(len(f.locals)))
			for _, l := range f.locals {
				WriteLEB128u(&body, 1)
				body.WriteByte(byte(l))
			}
			body.Write(f.body)
			body.WriteByte(OpEnd)
			WriteLEB128u(&sec, uint32(body.Len()))
			sec.Write(body.Bytes())
		}
		writeSection(&out, Section{ID: SectionCode, Payload: sec.Bytes()})
	}

	for _, c := range b.customs {
		writeSection(&out, c)
	}
	return out.Bytes()
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	WriteLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

// I32Const encodes an i32.const instruction.
func I32Const(v int32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(OpI32Const)
	WriteLEB128s(&buf, v)
	return buf.Bytes()
}

// Call encodes a call instruction.
func Call(idx uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(OpCall)
	WriteLEB128u(&buf, idx)
	return buf.Bytes()
}

// LocalGet encodes a local.get instruction.
func LocalGet(idx uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(OpLocalGet)
	WriteLEB128u(&buf, idx)
	return buf.Bytes()
}

// Code concatenates instruction fragments.
func Code(parts ...[]byte) []byte {
	return slices.Concat(parts...)
}
