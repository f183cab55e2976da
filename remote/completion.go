package remote

import (
	"context"
	"sync"

	"github.com/wippyai/wasm-isolate/errors"
)

// State is the outcome of a Completion.
type State uint8

const (
	Pending State = iota
	Succeeded
	Faulted
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Faulted:
		return "faulted"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Completion is a single-assignment slot for the outcome of an asynchronous
// call. It crosses the boundary by reference, so the callee publishes into
// the same slot the caller awaits.
type Completion[T any] struct {
	Object
	done  chan struct{}
	value T
	err   error
	mu    sync.Mutex
	state State
}

// NewCompletion returns a pending completion.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

func (c *Completion[T]) publish(state State, v T, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Pending {
		return false
	}
	c.state, c.value, c.err = state, v, err
	close(c.done)
	return true
}

// SetResult publishes a value. It reports false if an outcome was already set.
func (c *Completion[T]) SetResult(v T) bool {
	return c.publish(Succeeded, v, nil)
}

// SetException publishes a failure. The awaiting side receives it wrapped in
// an *errors.AggregateError.
func (c *Completion[T]) SetException(err error) bool {
	var zero T
	if err == nil {
		err = errors.New(errors.PhaseInvoke, errors.KindRemote).Detail("nil exception").Build()
	}
	return c.publish(Faulted, zero, errors.Aggregate(err))
}

// SetCanceled publishes cancellation.
func (c *Completion[T]) SetCanceled() bool {
	var zero T
	return c.publish(Canceled, zero, errors.Canceled(context.Canceled))
}

// Done is closed once an outcome is published.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// State returns the current outcome.
func (c *Completion[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Await blocks until an outcome is published or ctx ends. Ending ctx stops
// the wait only; the remote computation keeps running.
func (c *Completion[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.err
}
