package domain

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/wasm-isolate/errors"
)

// Disposable guards a domain with exactly-once teardown. An owning wrapper
// unloads its domain on Close unless the domain is primary; a borrowing
// wrapper never does.
type Disposable struct {
	domain   *Domain
	owned    bool
	disposed atomic.Bool
}

// Wrap takes ownership of d.
func Wrap(d *Domain) (*Disposable, error) {
	if d == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "domain", "domain is nil")
	}
	return &Disposable{domain: d, owned: !d.primary}, nil
}

// Borrow wraps d without taking ownership.
func Borrow(d *Domain) (*Disposable, error) {
	if d == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "domain", "domain is nil")
	}
	return &Disposable{domain: d}, nil
}

// Domain returns the wrapped domain.
func (w *Disposable) Domain() (*Domain, error) {
	if w.disposed.Load() {
		return nil, errors.Disposed("domain wrapper")
	}
	return w.domain, nil
}

// Owned reports whether Close unloads the domain.
func (w *Disposable) Owned() bool { return w.owned }

// IsDisposed reports whether Close has run.
func (w *Disposable) IsDisposed() bool { return w.disposed.Load() }

// Close marks the wrapper disposed and unloads an owned domain. Subsequent
// calls are no-ops.
func (w *Disposable) Close(ctx context.Context) error {
	if !w.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if !w.owned {
		return nil
	}
	return w.domain.Unload(ctx)
}
