package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01

	headerSize = 8
)

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID (except custom sections).
const (
	SectionCustom   byte = 0  // Custom section (can appear anywhere)
	SectionType     byte = 1  // Type section (function signatures)
	SectionImport   byte = 2  // Import section
	SectionFunction byte = 3  // Function section (type indices)
	SectionTable    byte = 4  // Table section
	SectionMemory   byte = 5  // Memory section
	SectionGlobal   byte = 6  // Global section
	SectionExport   byte = 7  // Export section
	SectionStart    byte = 8  // Start section
	SectionElement  byte = 9  // Element section
	SectionCode     byte = 10 // Code section (function bodies)
	SectionData     byte = 11 // Data section
)

// Import/Export descriptor kinds identify the type of imported or exported item.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// ValType is a core value type encoding.
type ValType byte

const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	}
	return "unknown"
}

// FuncTypeByte prefixes every function type in the type section.
const FuncTypeByte byte = 0x60

// Opcodes used by hand-assembled function bodies.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpEnd         byte = 0x0B
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpI32Add      byte = 0x6A
	OpI32Sub      byte = 0x6B
	OpI32Mul      byte = 0x6C
	OpI64Add      byte = 0x7C
)

// Name subsection IDs of the "name" custom section.
const (
	NameSubsectionModule   byte = 0
	NameSubsectionFunction byte = 1
)
