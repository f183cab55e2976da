package engine

import (
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ImportModules returns the distinct module names compiled imports from, in
// first-seen order. Functions come first, then memories.
func ImportModules(compiled wazero.CompiledModule) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(mod string, ok bool) {
		if !ok {
			return
		}
		if _, dup := seen[mod]; dup {
			return
		}
		seen[mod] = struct{}{}
		out = append(out, mod)
	}
	for _, def := range compiled.ImportedFunctions() {
		mod, _, ok := def.Import()
		add(mod, ok)
	}
	for _, def := range compiled.ImportedMemories() {
		mod, _, ok := def.Import()
		add(mod, ok)
	}
	return out
}

// Export describes one exported function.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Signature renders the export as "name(i32, i32) -> i32".
func (x Export) Signature() string {
	s := x.Name + "("
	for i, p := range x.Params {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(p)
	}
	s += ")"
	if len(x.Results) > 0 {
		s += " -> "
		for i, r := range x.Results {
			if i > 0 {
				s += ", "
			}
			s += api.ValueTypeName(r)
		}
	}
	return s
}

// Exports lists the exported functions of an instantiated module, sorted by name.
func Exports(mod api.Module) []Export {
	defs := mod.ExportedFunctionDefinitions()
	out := make([]Export, 0, len(defs))
	for name, def := range defs {
		out = append(out, Export{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
