package linker

import (
	"strings"

	"github.com/wippyai/wasm-isolate/errors"
)

// Strategy selects how a module file is brought into a domain.
type Strategy uint8

const (
	// LoadFromPath loads through the file system and holds a shared lock on
	// the file until the domain unloads.
	LoadFromPath Strategy = iota
	// LoadIndependentCopy reads the file once into memory. Nothing stays
	// open and the module reports no location.
	LoadIndependentCopy
	// LoadFromBytes reads the module and an optional symbol file into
	// memory. The codebase is set to the requested path after loading.
	LoadFromBytes
)

func (s Strategy) String() string {
	switch s {
	case LoadFromPath:
		return "path"
	case LoadIndependentCopy:
		return "copy"
	case LoadFromBytes:
		return "bytes"
	}
	return "unknown"
}

// Valid reports whether s is one of the defined strategies.
func (s Strategy) Valid() bool {
	return s <= LoadFromBytes
}

// ParseStrategy accepts the String form or the Go constant name, case
// insensitive.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "path", "loadfrompath", "from-path":
		return LoadFromPath, nil
	case "copy", "loadindependentcopy", "independent-copy":
		return LoadIndependentCopy, nil
	case "bytes", "loadfrombytes", "from-bytes":
		return LoadFromBytes, nil
	}
	return LoadFromPath, errors.InvalidArgument(errors.PhaseConfig, "strategy", "unknown load strategy "+s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
