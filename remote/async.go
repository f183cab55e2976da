package remote

import (
	"context"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
)

// dispatchAsync activates an invoker, then runs thunk to completion on a
// goroutine inside the domain. The outcome is published to the returned
// completion, which the caller awaits on its own side.
func dispatchAsync[R any](ctx context.Context, w *domain.Disposable, thunk func(context.Context) (R, error)) (*Completion[R], error) {
	p, err := NewProxy[*invoker](ctx, w)
	if err != nil {
		return nil, err
	}
	inv, err := p.RemoteObject()
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	rctx, err := inv.bind(ctx)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	c := NewCompletion[R]()
	go func() {
		defer p.Close(rctx)
		publish(rctx, c, thunk)
	}()
	return c, nil
}

func publish[R any](ctx context.Context, c *Completion[R], thunk func(context.Context) (R, error)) {
	res, err := run(ctx, thunk)
	switch {
	case err == nil:
		out, cerr := copyResult(res)
		if cerr != nil {
			c.SetException(cerr)
			return
		}
		c.SetResult(out)
	case errors.Is(err, context.Canceled):
		c.SetCanceled()
	default:
		c.SetException(err)
	}
}

// InvokeAsync runs fn inside w's domain without blocking the caller.
// Failures surface from Await as *errors.AggregateError.
func InvokeAsync[R any](ctx context.Context, w *domain.Disposable, fn func(context.Context) (R, error)) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, fn)
}

// InvokeAsync1 runs fn(a) inside w's domain without blocking the caller.
func InvokeAsync1[A, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A) (R, error), a A) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	ca, err := copyArg(0, a)
	if err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, func(ctx context.Context) (R, error) { return fn(ctx, ca) })
}

// InvokeAsync2 runs fn(a, b) inside w's domain without blocking the caller.
func InvokeAsync2[A, B, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B) (R, error), a A, b B) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	args, err := copyArgs([]any{a, b})
	if err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]))
	})
}

// InvokeAsync3 runs fn(a, b, c) inside w's domain without blocking the caller.
func InvokeAsync3[A, B, C, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C) (R, error), a A, b B, c C) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	args, err := copyArgs([]any{a, b, c})
	if err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]))
	})
}

// InvokeAsync4 runs fn(a, b, c, d) inside w's domain without blocking the caller.
func InvokeAsync4[A, B, C, D, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D) (R, error), a A, b B, c C, d D) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	args, err := copyArgs([]any{a, b, c, d})
	if err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]))
	})
}

// InvokeAsync5 runs fn(a, b, c, d, e) inside w's domain without blocking the caller.
func InvokeAsync5[A, B, C, D, E, R any](ctx context.Context, w *domain.Disposable, fn func(context.Context, A, B, C, D, E) (R, error), a A, b B, c C, d D, e E) (*Completion[R], error) {
	if err := checkCall(w, fn == nil); err != nil {
		return nil, err
	}
	args, err := copyArgs([]any{a, b, c, d, e})
	if err != nil {
		return nil, err
	}
	return dispatchAsync(ctx, w, func(ctx context.Context) (R, error) {
		return fn(ctx, as[A](args[0]), as[B](args[1]), as[C](args[2]), as[D](args[3]), as[E](args[4]))
	})
}
