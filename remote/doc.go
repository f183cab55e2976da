// Package remote moves objects and calls across a domain boundary.
//
// Types that embed Object cross by reference: they are activated inside the
// target domain with a registered Factory and reached through a Proxy. Every
// other value crosses by copy (gob round trip into a fresh value of the same
// dynamic type). Functions, channels and unsafe pointers never cross; trying
// fails with errors.ErrMarshal.
//
//	remote.Register(func(ctx context.Context, d *domain.Domain, args []any) (*Counter, error) {
//		return &Counter{}, nil
//	})
//	p, err := remote.NewProxy[*Counter](ctx, wrapper)
//	defer p.Close(ctx)
//
// The invocation family runs a callable inside a domain with up to five
// copied arguments: Invoke..Invoke5 return a result, Run..Run5 return only
// an error, and InvokeAsync..InvokeAsync5 return a Completion the caller
// awaits. Callees see the target domain through domain.FromContext and get
// no cancellation from the caller.
//
//	sum, err := remote.Invoke2(ctx, wrapper, func(ctx context.Context, a, b int) (int, error) {
//		return a + b, nil
//	}, 2, 3)
//
// Errors returned by synchronous callables propagate unchanged. Errors from
// asynchronous callables always arrive wrapped in *errors.AggregateError.
package remote
