package remote

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/resource"
)

// Proxy holds a T activated inside a domain. The object stays in the
// domain's table; the proxy only keeps its handle.
type Proxy[T Remotable] struct {
	wrapper  *domain.Disposable
	kind     string
	handle   resource.Handle
	owns     bool
	disposed atomic.Bool
}

// NewProxy activates a T inside the wrapper's domain. The proxy shares the
// wrapper and never closes it.
func NewProxy[T Remotable](ctx context.Context, w *domain.Disposable, args ...any) (*Proxy[T], error) {
	if w == nil {
		return nil, errors.InvalidArgument(errors.PhaseLifecycle, "wrapper", "wrapper is nil")
	}
	d, err := w.Domain()
	if err != nil {
		return nil, err
	}
	copied, err := copyArgs(args)
	if err != nil {
		return nil, err
	}
	obj, err := activate[T](ctx, d, copied)
	if err != nil {
		return nil, err
	}

	kind := reflect.TypeFor[T]().String()
	h, err := d.Objects().Insert(kind, obj)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLifecycle, errors.KindDisposed, err, "activate "+kind)
	}
	return &Proxy[T]{wrapper: w, kind: kind, handle: h}, nil
}

// CreateProxy wraps d in a new owning wrapper and activates a T inside it.
// Closing the proxy closes the wrapper, which unloads d unless it is primary.
func CreateProxy[T Remotable](ctx context.Context, d *domain.Domain, args ...any) (*Proxy[T], error) {
	w, err := domain.Wrap(d)
	if err != nil {
		return nil, err
	}
	p, err := NewProxy[T](ctx, w, args...)
	if err != nil {
		return nil, multierr.Append(err, w.Close(ctx))
	}
	p.owns = true
	return p, nil
}

// RemoteObject returns the activated object. Every call returns the same
// instance.
func (p *Proxy[T]) RemoteObject() (T, error) {
	var zero T
	if p.disposed.Load() {
		return zero, errors.Disposed("proxy")
	}
	d, err := p.wrapper.Domain()
	if err != nil {
		return zero, err
	}
	v, ok := d.Objects().GetKind(p.handle, p.kind)
	if !ok {
		return zero, errors.Disposed("remote " + p.kind)
	}
	return v.(T), nil
}

// Domain returns the domain the object lives in.
func (p *Proxy[T]) Domain() (*domain.Domain, error) {
	if p.disposed.Load() {
		return nil, errors.Disposed("proxy")
	}
	return p.wrapper.Domain()
}

// Owns reports whether closing the proxy also closes its wrapper.
func (p *Proxy[T]) Owns() bool { return p.owns }

// IsDisposed reports whether Close has run.
func (p *Proxy[T]) IsDisposed() bool { return p.disposed.Load() }

// Close releases the object, and the wrapper when the proxy owns it.
// Subsequent calls are no-ops.
func (p *Proxy[T]) Close(ctx context.Context) error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if d, err := p.wrapper.Domain(); err == nil {
		d.Objects().Remove(p.handle)
	}
	if p.owns {
		return p.wrapper.Close(ctx)
	}
	return nil
}

// WithProxy activates a T in the wrapper's domain, runs fn with it, and
// closes the proxy on every exit path.
func WithProxy[T Remotable](ctx context.Context, w *domain.Disposable, fn func(ctx context.Context, obj T) error, args ...any) (err error) {
	p, err := NewProxy[T](ctx, w, args...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, p.Close(ctx))
	}()

	obj, err := p.RemoteObject()
	if err != nil {
		return err
	}
	return fn(ctx, obj)
}
