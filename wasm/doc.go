// Package wasm provides the small slice of the WebAssembly binary format that
// module loading needs.
//
// Sections are split without decoding their contents:
//
//	secs, err := wasm.ParseSections(data)
//
// Symbol files are sequences of custom sections (a "name" section, usually),
// optionally carrying a module header. They are spliced onto a module before
// compilation:
//
//	syms, err := wasm.ParseCustomSections(symbolData)
//	withSyms, err := wasm.AppendCustomSections(data, syms)
//
// Builder assembles small modules by hand, for fixtures and examples:
//
//	b := wasm.NewBuilder()
//	add := b.Func(wasm.FuncType{
//		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
//		Results: []wasm.ValType{wasm.ValI32},
//	}, nil, wasm.Code(wasm.LocalGet(0), wasm.LocalGet(1), []byte{wasm.OpI32Add})...)
//	b.ExportFunc("add", add)
//	bin := b.Bytes()
package wasm
