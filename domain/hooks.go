package domain

import (
	"context"
	"slices"

	"github.com/tetratelabs/wazero/api"
)

// ResolveFunc is a resolution hook. It is asked for a module by import name
// when a load in the domain hits an import nothing has provided yet. A miss
// is (nil, false, nil), not an error.
type ResolveFunc func(ctx context.Context, name string) (api.Module, bool, error)

// HookID identifies a registered hook for later removal.
type HookID uint64

type hook struct {
	fn ResolveFunc
	id HookID
}

// AddResolveHook registers fn. Hooks run in registration order.
func (d *Domain) AddResolveHook(fn ResolveFunc) HookID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextHook
	d.nextHook++
	d.hooks = append(d.hooks, hook{id: id, fn: fn})
	return id
}

// RemoveResolveHook unregisters a hook. It reports whether id was present.
func (d *Domain) RemoveResolveHook(id HookID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, h := range d.hooks {
		if h.id == id {
			d.hooks = slices.Delete(d.hooks, i, i+1)
			return true
		}
	}
	return false
}

// HookCount returns the number of registered hooks.
func (d *Domain) HookCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks)
}

// Resolve finds the module an import of name refers to. Modules already in
// the domain win; otherwise hooks are asked in order. A name already being
// resolved further up the same chain is a miss, which breaks import cycles.
func (d *Domain) Resolve(ctx context.Context, name string) (api.Module, bool, error) {
	if mod := d.engine.Module(name); mod != nil {
		return mod, true, nil
	}
	if resolving(ctx, d, name) {
		return nil, false, nil
	}
	ctx = withResolving(ctx, d, name)

	d.mu.RLock()
	hooks := slices.Clone(d.hooks)
	d.mu.RUnlock()

	for _, h := range hooks {
		mod, ok, err := h.fn(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if ok && mod != nil {
			return mod, true, nil
		}
	}
	return nil, false, nil
}
