package remote

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
)

// invoker is the short-lived object every invocation activates inside the
// target domain; the callable runs on its side of the boundary.
type invoker struct {
	Object
	mu     sync.Mutex
	domain *domain.Domain
}

func init() {
	Register[*invoker](func(_ context.Context, d *domain.Domain, _ []any) (*invoker, error) {
		return &invoker{domain: d}, nil
	})
}

// Drop detaches the invoker from its domain once its proxy is closed, so a
// stale reference can no longer bind calls to it.
func (i *invoker) Drop() {
	i.mu.Lock()
	i.domain = nil
	i.mu.Unlock()
}

// bind returns a context bound to the invoker's domain with no
// cancellation link to the caller. It fails once the invoker was dropped.
func (i *invoker) bind(ctx context.Context) (context.Context, error) {
	i.mu.Lock()
	d := i.domain
	i.mu.Unlock()
	if d == nil {
		return nil, errors.Disposed("invoker")
	}
	return domain.WithDomain(context.WithoutCancel(ctx), d), nil
}

func run[R any](ctx context.Context, thunk func(context.Context) (R, error)) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine.Logger().Error("panic in remote call",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = errors.New(errors.PhaseInvoke, errors.KindRemote).
				Value(r).
				Detail("panic: %v", r).
				Build()
		}
	}()
	return thunk(ctx)
}

// dispatch activates an invoker in w's domain, runs thunk there, and copies
// the result back.
func dispatch[R any](ctx context.Context, w *domain.Disposable, thunk func(context.Context) (R, error)) (R, error) {
	var zero R
	p, err := NewProxy[*invoker](ctx, w)
	if err != nil {
		return zero, err
	}
	defer p.Close(ctx)

	inv, err := p.RemoteObject()
	if err != nil {
		return zero, err
	}
	rctx, err := inv.bind(ctx)
	if err != nil {
		return zero, err
	}
	res, err := run(rctx, thunk)
	if err != nil {
		return zero, err
	}
	return copyResult(res)
}

func copyResult[R any](res R) (R, error) {
	out, err := Copy(res)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			e.Path = "result"
		}
		return out, err
	}
	return out, nil
}

func checkCall(w *domain.Disposable, fnNil bool) error {
	if w == nil {
		return errors.InvalidArgument(errors.PhaseInvoke, "wrapper", "wrapper is nil")
	}
	if fnNil {
		return errors.InvalidArgument(errors.PhaseInvoke, "fn", "callable is nil")
	}
	return nil
}

// Invoke runs fn inside w's domain and returns its result.
func Invoke[R any](ctx context.Context, w *domain.Disposable, fn func(context.Context) (R, error)) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	return dispatch(ctx, w, fn)
}

// Invoke1 runs fn(a) inside w's domain.
func Invoke1[A, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A) (R, error), a A) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	ca, err := copyArg(0, a)
	if err != nil {
		return zero, err
	}
	return dispatch(ctx, w, func(ctx context.Context) (R, error) { return fn(ctx, ca) })
}

// Invoke2 runs fn(a, b) inside w's domain.
func Invoke2[A, B, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B) (R, error), a A, b B) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	ca, err := copyArg(0, a)
	if err != nil {
		return zero, err
	}
	cb, err := copyArg(1, b)
	if err != nil {
		return zero, err
	}
	return dispatch(ctx, w, func(ctx context.Context) (R, error) { return fn(ctx, ca, cb) })
}

// Invoke3 runs fn(a, b, c) inside w's domain.
func Invoke3[A, B, C, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C) (R, error), a A, b B, c C) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	ca, err := copyArg(0, a)
	if err != nil {
		return zero, err
	}
	cb, err := copyArg(1, b)
	if err != nil {
		return zero, err
	}
	cc, err := copyArg(2, c)
	if err != nil {
		return zero, err
	}
	return dispatch(ctx, w, func(ctx context.Context) (R, error) { return fn(ctx, ca, cb, cc) })
}

// Invoke4 runs fn(a, b, c, d) inside w's domain.
func Invoke4[A, B, C, D, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D) (R, error), a A, b B, c C, d D) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	args, err := copyArgs([]any{a, b, c, d})
	if err != nil {
		return zero, err
	}
	return dispatch(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]))
	})
}

// Invoke5 runs fn(a, b, c, d, e) inside w's domain.
func Invoke5[A, B, C, D, E, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D, E) (R, error), a A, b B, c C, d D, e E) (R, error) {
	var zero R
	if err := checkCall(w, fn == nil); err != nil {
		return zero, err
	}
	args, err := copyArgs([]any{a, b, c, d, e})
	if err != nil {
		return zero, err
	}
	return dispatch(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]), as[E](args[4]))
	})
}

// as converts a copied argument back to its static type; nil interface
// values become the zero value.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

type none struct{}

func action(fn func(context.Context) error) func(context.Context) (none, error) {
	return func(ctx context.Context) (none, error) { return none{}, fn(ctx) }
}

// Run runs the action fn inside w's domain.
func Run(ctx context.Context, w *domain.Disposable, fn func(context.Context) error) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	_, err := dispatchAction(ctx, w, action(fn))
	return err
}

// Run1 runs fn(a) inside w's domain.
func Run1[A any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A) error, a A) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	ca, err := copyArg(0, a)
	if err != nil {
		return err
	}
	_, err = dispatchAction(ctx, w, action(func(ctx context.Context) error { return fn(ctx, ca) }))
	return err
}

// Run2 runs fn(a, b) inside w's domain.
func Run2[A, B any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B) error, a A, b B) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	args, err := copyArgs([]any{a, b})
	if err != nil {
		return err
	}
	_, err = dispatchAction(ctx, w, action(func(ctx context.Context) error {
		return fn(ctx, as[A](args[0]), as[B](args[1]))
	}))
	return err
}

// Run3 runs fn(a, b, c) inside w's domain.
func Run3[A, B, C any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C) error, a A, b B, c C) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	args, err := copyArgs([]any{a, b, c})
	if err != nil {
		return err
	}
	_, err = dispatchAction(ctx, w, action(func(ctx context.Context) error {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]))
	}))
	return err
}

// Run4 runs fn(a, b, c, d) inside w's domain.
func Run4[A, B, C, D any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D) error, a A, b B, c C, d D) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	args, err := copyArgs([]any{a, b, c, d})
	if err != nil {
		return err
	}
	_, err = dispatchAction(ctx, w, action(func(ctx context.Context) error {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]))
	}))
	return err
}

// Run5 runs fn(a, b, c, d, e) inside w's domain.
func Run5[A, B, C, D, E any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D, E) error, a A, b B, c C, d D, e E) error {
	if err := checkCall(w, fn == nil); err != nil {
		return err
	}
	args, err := copyArgs([]any{a, b, c, d, e})
	if err != nil {
		return err
	}
	_, err = dispatchAction(ctx, w, action(func(ctx context.Context) error {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]), as[E](args[4]))
	}))
	return err
}

// dispatchAction is dispatch without a result to copy back.
func dispatchAction(ctx context.Context, w *domain.Disposable, thunk func(context.Context) (none, error)) (none, error) {
	p, err := NewProxy[*invoker](ctx, w)
	if err != nil {
		return none{}, err
	}
	defer p.Close(ctx)

	inv, err := p.RemoteObject()
	if err != nil {
		return none{}, err
	}
	rctx, err := inv.bind(ctx)
	if err != nil {
		return none{}, err
	}
	return run(rctx, thunk)
}
