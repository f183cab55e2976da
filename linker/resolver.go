package linker

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/remote"
)

// probeExtensions are tried in order for every probe directory.
var probeExtensions = []string{".wasm", ".wasm.gz"}

// PathResolver finds modules by name in a list of probe directories and
// loads them with its active strategy. Its Resolve method is a
// domain.ResolveFunc.
//
// PathResolver is not safe for concurrent use. Two loads sharing a resolver
// race on the active strategy.
type PathResolver struct {
	remote.Object
	loader          *Linker
	probePaths      []string
	applicationBase string
	privateBinPath  string
	strategy        Strategy
}

func init() {
	remote.Register[*PathResolver](func(_ context.Context, d *domain.Domain, args []any) (*PathResolver, error) {
		strategy := LoadFromPath
		if len(args) > 0 {
			if s, ok := args[0].(Strategy); ok {
				strategy = s
			}
		}
		return NewPathResolver(New(d), strategy), nil
	})
}

// NewPathResolver returns a resolver that loads through loader. A nil
// loader loads into the primary domain.
func NewPathResolver(loader *Linker, strategy Strategy) *PathResolver {
	if loader == nil {
		loader = New(domain.Primary())
	}
	return &PathResolver{loader: loader, strategy: strategy}
}

// Loader returns the linker resolved modules are loaded with.
func (r *PathResolver) Loader() *Linker { return r.loader }

// Strategy returns the strategy resolved modules are loaded with.
func (r *PathResolver) Strategy() Strategy { return r.strategy }

// SetStrategy changes the active strategy.
func (r *PathResolver) SetStrategy(s Strategy) { r.strategy = s }

// ApplicationBase returns the last value given to SetApplicationBase.
func (r *PathResolver) ApplicationBase() string { return r.applicationBase }

// SetApplicationBase records base and adds it to the probe paths.
func (r *PathResolver) SetApplicationBase(base string) {
	r.applicationBase = base
	r.AddProbePath(base)
}

// PrivateBinPath returns the last value given to SetPrivateBinPath.
func (r *PathResolver) PrivateBinPath() string { return r.privateBinPath }

// SetPrivateBinPath records path and adds it to the probe paths.
func (r *PathResolver) SetPrivateBinPath(path string) {
	r.privateBinPath = path
	r.AddProbePath(path)
}

// AddProbePath adds a directory, or an os.PathListSeparator separated list
// of them. Empty input is ignored.
func (r *PathResolver) AddProbePath(path string) {
	if path == "" {
		return
	}
	r.AddProbePaths(filepath.SplitList(path)...)
}

// AddProbePaths adds directories in order, skipping empty entries and ones
// already present.
func (r *PathResolver) AddProbePaths(paths ...string) {
	for _, p := range paths {
		dir, ok := canonical(p)
		if !ok || slices.Contains(r.probePaths, dir) {
			continue
		}
		r.probePaths = append(r.probePaths, dir)
	}
}

// RemoveProbePath removes a directory, or a list of them.
func (r *PathResolver) RemoveProbePath(path string) {
	if path == "" {
		return
	}
	r.RemoveProbePaths(filepath.SplitList(path)...)
}

// RemoveProbePaths removes directories. Unknown entries are ignored.
func (r *PathResolver) RemoveProbePaths(paths ...string) {
	for _, p := range paths {
		dir, ok := canonical(p)
		if !ok {
			continue
		}
		r.probePaths = slices.DeleteFunc(r.probePaths, func(s string) bool { return s == dir })
	}
}

// ProbePaths returns the probe directories in search order.
func (r *PathResolver) ProbePaths() []string {
	return slices.Clone(r.probePaths)
}

// Resolve looks for <name>.wasm, then <name>.wasm.gz, in each probe
// directory and loads the first match. Not finding the module is
// (nil, false, nil).
func (r *PathResolver) Resolve(ctx context.Context, name string) (api.Module, bool, error) {
	if !plainName(name) {
		return nil, false, nil
	}
	for _, dir := range r.probePaths {
		for _, ext := range probeExtensions {
			p := filepath.Join(dir, name+ext)
			if !isFile(p) {
				continue
			}
			Logger().Debug("resolved module",
				zap.String("name", name),
				zap.String("path", p),
				zap.Stringer("strategy", r.strategy))
			rec, err := r.loader.load(ctx, r.strategy, p, "")
			if err != nil {
				return nil, false, err
			}
			return rec.Module, true, nil
		}
	}
	return nil, false, nil
}

func canonical(p string) (string, bool) {
	if strings.TrimSpace(p) == "" {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	return filepath.Clean(abs), true
}

// plainName reports whether name can be used as a file stem.
func plainName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\:`)
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
