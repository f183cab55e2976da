package linker

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
)

// digestPrefix is how many hex digits of the digest appear in a full name.
const digestPrefix = 16

// ModuleName identifies a module: its name plus the sha256 digest of the
// binary that was instantiated. Host modules carry no digest.
type ModuleName struct {
	Name   string `json:"name"`
	Digest string `json:"digest,omitempty"`
}

// FullName returns "name, sha256=<prefix>", or just the name when there is
// no digest.
func (n ModuleName) FullName() string {
	if n.Digest == "" {
		return n.Name
	}
	d := n.Digest
	if len(d) > digestPrefix {
		d = d[:digestPrefix]
	}
	return n.Name + ", sha256=" + d
}

func (n ModuleName) String() string { return n.FullName() }

// Descriptor is an immutable, copyable description of a module loaded into
// some domain. It never references the module itself, so it crosses the
// boundary by value.
type Descriptor struct {
	codeBase string
	location string
	name     ModuleName
	dynamic  bool
}

// FromPath describes the module file at path without loading it. The name
// is the file stem; the digest is left empty.
func FromPath(path string) (Descriptor, error) {
	if path == "" {
		return Descriptor{}, errors.InvalidArgument(errors.PhaseLoad, "path", "path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Descriptor{}, errors.FileNotFound(errors.PhaseLoad, path, err)
	}
	return NewDescriptor(CodeBaseOf(abs), abs, ModuleName{Name: ModuleNameOf(abs)})
}

// NewDescriptor builds a descriptor for a module backed by a file. The
// codebase must name an existing file; a non-empty location must too.
func NewDescriptor(codeBase, location string, name ModuleName) (Descriptor, error) {
	if codeBase == "" {
		return Descriptor{}, errors.InvalidArgument(errors.PhaseLoad, "codebase", "codebase is empty")
	}
	if err := mustExist(PathOf(codeBase)); err != nil {
		return Descriptor{}, err
	}
	if location != "" {
		if err := mustExist(location); err != nil {
			return Descriptor{}, err
		}
	}
	return Descriptor{codeBase: codeBase, location: location, name: name}, nil
}

// DynamicDescriptor describes a module defined in Go, such as WASI.
func DynamicDescriptor(name ModuleName) Descriptor {
	return Descriptor{name: name, dynamic: true}
}

// FromRecord translates a domain record. Records were checked when the
// module was loaded, so the files are not looked at again.
func FromRecord(rec domain.Record) Descriptor {
	name := ModuleName{Name: rec.Name, Digest: rec.Digest}
	if rec.Dynamic {
		return DynamicDescriptor(name)
	}
	return Descriptor{codeBase: rec.CodeBase, location: rec.Location, name: name}
}

func mustExist(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.FileNotFound(errors.PhaseLoad, path, err)
	}
	if info.IsDir() {
		return errors.New(errors.PhaseLoad, errors.KindFileNotFound).
			Path(path).
			Detail("is a directory").
			Build()
	}
	return nil
}

// CodeBase returns the file URL the module was loaded from.
func (d Descriptor) CodeBase() string { return d.codeBase }

// Location returns the path of the file backing the module. It is empty for
// modules loaded into memory.
func (d Descriptor) Location() string { return d.location }

// Name returns the module's name.
func (d Descriptor) Name() ModuleName { return d.name }

// IsDynamic reports whether the module has no backing file.
func (d Descriptor) IsDynamic() bool { return d.dynamic }

// Path returns the local path of the codebase.
func (d Descriptor) Path() string {
	if d.dynamic {
		return ""
	}
	return PathOf(d.codeBase)
}

func (d Descriptor) String() string {
	if d.dynamic {
		return d.name.FullName() + " (dynamic)"
	}
	return d.name.FullName() + " @ " + d.codeBase
}

type wireDescriptor struct {
	CodeBase string     `json:"codebase,omitempty"`
	Location string     `json:"location,omitempty"`
	Name     ModuleName `json:"name"`
	Dynamic  bool       `json:"dynamic,omitempty"`
}

func (d Descriptor) wire() wireDescriptor {
	return wireDescriptor{CodeBase: d.codeBase, Location: d.location, Name: d.name, Dynamic: d.dynamic}
}

func (d *Descriptor) fromWire(w wireDescriptor) {
	d.codeBase, d.location, d.name, d.dynamic = w.CodeBase, w.Location, w.Name, w.Dynamic
}

// GobEncode implements gob.GobEncoder.
func (d Descriptor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d.wire()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (d *Descriptor) GobDecode(b []byte) error {
	var w wireDescriptor
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return err
	}
	d.fromWire(w)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d.fromWire(w)
	return nil
}

// CodeBaseOf returns the file URL for path.
func CodeBaseOf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// PathOf returns the local path a codebase refers to. Plain paths are
// returned unchanged.
func PathOf(codeBase string) string {
	u, err := url.Parse(codeBase)
	if err != nil || u.Scheme != "file" {
		return codeBase
	}
	p := u.Path
	if filepath.Separator != '/' {
		p = strings.TrimPrefix(p, "/")
	}
	return filepath.FromSlash(p)
}

// ModuleNameOf returns the module name a file is loaded under: its base
// name without the .wasm or .wasm.gz extension.
func ModuleNameOf(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".wasm.gz", ".wasm"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
