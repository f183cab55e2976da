package remote_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/remote"
)

type composite struct {
	Value int16
}

type record struct {
	Value1 int
	Value2 int16
	Value3 *float64
	Value4 *composite
	Value5 string
}

// box crosses by reference, so writes inside the domain are visible outside.
type box struct {
	remote.Object
	Value1 int
	Value2 int16
	Value3 *float64
	Value4 *composite
	Value5 string
}

type counter struct {
	remote.Object
	domainID string
	start    int
	hits     atomic.Int32
}

func init() {
	remote.Register(remote.Factory[*counter](func(ctx context.Context, d *domain.Domain, args []any) (*counter, error) {
		c := &counter{domainID: d.ID().String()}
		if len(args) > 0 {
			c.start = args[0].(int)
		}
		return c, nil
	}))
}

func newWrapper(t *testing.T) *domain.Disposable {
	t.Helper()
	d, err := domain.New(context.Background(), &domain.Setup{ApplicationBase: t.TempDir()})
	require.NoError(t, err)
	w, err := domain.Wrap(d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close(context.Background()) })
	return w
}

func f64(v float64) *float64 { return &v }

func TestInvoke_NoArgs(t *testing.T) {
	w := newWrapper(t)
	got, err := remote.Invoke(context.Background(), w, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestInvoke_RunsInsideDomain(t *testing.T) {
	w := newWrapper(t)
	want, _ := w.Domain()

	got, err := remote.Invoke(context.Background(), w, func(ctx context.Context) (string, error) {
		d, ok := domain.FromContext(ctx)
		if !ok {
			return "", fmt.Errorf("no domain in context")
		}
		return d.ID().String(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, want.ID().String(), got)
}

func TestInvoke_FiveArgs(t *testing.T) {
	w := newWrapper(t)
	got, err := remote.Invoke5(context.Background(), w,
		func(ctx context.Context, v1 int, v2 int16, v3 *float64, v4 *composite, v5 string) (*record, error) {
			return &record{Value1: v1, Value2: v2, Value3: v3, Value4: v4, Value5: v5}, nil
		},
		10, int16(11), f64(12.0), &composite{Value: 13}, "Last")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Value1)
	assert.Equal(t, int16(11), got.Value2)
	require.NotNil(t, got.Value3)
	assert.Equal(t, 12.0, *got.Value3)
	require.NotNil(t, got.Value4)
	assert.Equal(t, int16(13), got.Value4.Value)
	assert.Equal(t, "Last", got.Value5)
}

func TestInvoke_Arities(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	r1, err := remote.Invoke1(ctx, w, func(ctx context.Context, a int) (int, error) { return a, nil }, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r1)

	r2, err := remote.Invoke2(ctx, w, func(ctx context.Context, a, b int) (int, error) { return a + b, nil }, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, r2)

	r3, err := remote.Invoke3(ctx, w, func(ctx context.Context, a, b, c int) (int, error) { return a + b + c, nil }, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, r3)

	r4, err := remote.Invoke4(ctx, w, func(ctx context.Context, a, b, c, d int) (int, error) { return a + b + c + d, nil }, 1, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, r4)
}

func TestInvoke_CopiesArguments(t *testing.T) {
	w := newWrapper(t)
	in := &composite{Value: 1}

	out, err := remote.Invoke1(context.Background(), w, func(ctx context.Context, c *composite) (*composite, error) {
		c.Value = 99
		return c, nil
	}, in)
	require.NoError(t, err)
	assert.Equal(t, int16(1), in.Value, "caller's value must not change")
	assert.Equal(t, int16(99), out.Value)
	assert.NotSame(t, in, out)
}

func TestInvoke_ErrorPropagatesUnchanged(t *testing.T) {
	w := newWrapper(t)
	boom := fmt.Errorf("boom")

	_, err := remote.Invoke(context.Background(), w, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.Same(t, boom, err)
}

func TestInvoke_Panic(t *testing.T) {
	w := newWrapper(t)
	_, err := remote.Invoke(context.Background(), w, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRemote)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestInvoke_NilArguments(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	_, err := remote.Invoke[int](ctx, nil, func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = remote.Invoke[int](ctx, w, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.Invoke1[int, int](ctx, w, nil, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.Invoke2[int, int, int](ctx, w, nil, 1, 2)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.Invoke3[int, int, int, int](ctx, w, nil, 1, 2, 3)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.Invoke4[int, int, int, int, int](ctx, w, nil, 1, 2, 3, 4)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.Invoke5[int, int, int, int, int, int](ctx, w, nil, 1, 2, 3, 4, 5)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestInvoke_MarshalFailures(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	_, err := remote.Invoke1(ctx, w, func(ctx context.Context, ch chan int) (int, error) {
		return 0, nil
	}, make(chan int))
	assert.ErrorIs(t, err, errors.ErrMarshal)
	assert.Contains(t, err.Error(), "arg0")

	_, err = remote.Invoke(ctx, w, func(ctx context.Context) (func(), error) {
		return func() {}, nil
	})
	assert.ErrorIs(t, err, errors.ErrMarshal)
	assert.Contains(t, err.Error(), "result")
}

func TestInvoke_DisposedWrapper(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	require.NoError(t, w.Close(ctx))

	_, err := remote.Invoke(ctx, w, func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestRun_MarshalObjectByRef(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	actual := &box{}

	err := remote.Run5(ctx, w,
		func(ctx context.Context, b *box, v2 int16, v3 *float64, v4 *composite, v5 string) error {
			b.Value1 = 10
			b.Value2 = v2
			b.Value3 = v3
			b.Value4 = v4
			b.Value5 = v5
			return nil
		},
		actual, int16(11), f64(12.0), &composite{Value: 13}, "Last")
	require.NoError(t, err)

	assert.Equal(t, 10, actual.Value1)
	assert.Equal(t, int16(11), actual.Value2)
	assert.Equal(t, 12.0, *actual.Value3)
	assert.Equal(t, int16(13), actual.Value4.Value)
	assert.Equal(t, "Last", actual.Value5)
}

func TestRun_Arities(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	b := &box{}

	require.NoError(t, remote.Run(ctx, w, func(ctx context.Context) error { return nil }))
	require.NoError(t, remote.Run1(ctx, w, func(ctx context.Context, b *box) error {
		b.Value1 = 1
		return nil
	}, b))
	require.NoError(t, remote.Run2(ctx, w, func(ctx context.Context, b *box, v int) error {
		b.Value1 += v
		return nil
	}, b, 2))
	require.NoError(t, remote.Run3(ctx, w, func(ctx context.Context, b *box, v, u int) error {
		b.Value1 += v + u
		return nil
	}, b, 3, 4))
	require.NoError(t, remote.Run4(ctx, w, func(ctx context.Context, b *box, v, u, s int) error {
		b.Value1 += v + u + s
		return nil
	}, b, 5, 6, 7))
	assert.Equal(t, 28, b.Value1)

	boom := fmt.Errorf("boom")
	assert.Same(t, boom, remote.Run(ctx, w, func(ctx context.Context) error { return boom }))
	assert.ErrorIs(t, remote.Run(ctx, w, nil), errors.ErrInvalidArgument)
	assert.ErrorIs(t, remote.Run1[int](ctx, w, nil, 1), errors.ErrInvalidArgument)
	assert.ErrorIs(t, remote.Run2[int, int](ctx, w, nil, 1, 2), errors.ErrInvalidArgument)
	assert.ErrorIs(t, remote.Run3[int, int, int](ctx, w, nil, 1, 2, 3), errors.ErrInvalidArgument)
	assert.ErrorIs(t, remote.Run4[int, int, int, int](ctx, w, nil, 1, 2, 3, 4), errors.ErrInvalidArgument)
	assert.ErrorIs(t, remote.Run5[int, int, int, int, int](ctx, w, nil, 1, 2, 3, 4, 5), errors.ErrInvalidArgument)
}

func TestInvokeAsync_EmptyFunction(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	c, err := remote.InvokeAsync(ctx, w, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	got, err := c.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, remote.Succeeded, c.State())
}

func TestInvokeAsync_Delay(t *testing.T) {
	for _, delay := range []time.Duration{10 * time.Millisecond, 200 * time.Millisecond} {
		t.Run(delay.String(), func(t *testing.T) {
			ctx := context.Background()
			w := newWrapper(t)

			c, err := remote.InvokeAsync1(ctx, w, func(ctx context.Context, v int) (*record, error) {
				time.Sleep(delay)
				return &record{Value1: v}, nil
			}, 10)
			require.NoError(t, err)

			got, err := c.Await(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 10, got.Value1)
		})
	}
}

func TestInvokeAsync_ExceptionIsAggregated(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	boom := fmt.Errorf("boom")

	c, err := remote.InvokeAsync5(ctx, w,
		func(ctx context.Context, v1 int, v2 int16, v3 *float64, v4 *composite, v5 string) (*record, error) {
			if v5 == "Last" {
				return nil, boom
			}
			return &record{Value1: v1}, nil
		},
		10, int16(11), f64(12.0), &composite{Value: 13}, "Last")
	require.NoError(t, err)

	_, err = c.Await(ctx)
	var agg *errors.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.NotSame(t, boom, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, remote.Faulted, c.State())
}

func TestInvokeAsync_Canceled(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	c, err := remote.InvokeAsync(ctx, w, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("stopped: %w", context.Canceled)
	})
	require.NoError(t, err)
	_, err = c.Await(ctx)
	assert.ErrorIs(t, err, errors.ErrCanceled)
	assert.Equal(t, remote.Canceled, c.State())
}

func TestInvokeAsync_CallerCancellationDoesNotCross(t *testing.T) {
	w := newWrapper(t)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	c, err := remote.InvokeAsync(ctx, w, func(ctx context.Context) (int, error) {
		<-release
		return 7, ctx.Err()
	})
	require.NoError(t, err)

	cancel()
	_, err = c.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled, "waiting stops on the caller side")

	close(release)
	got, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestInvokeAsync_Arities(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)

	c2, err := remote.InvokeAsync2(ctx, w, func(ctx context.Context, a, b int) (int, error) { return a + b, nil }, 1, 2)
	require.NoError(t, err)
	c3, err := remote.InvokeAsync3(ctx, w, func(ctx context.Context, a, b, c int) (int, error) { return a + b + c, nil }, 1, 2, 3)
	require.NoError(t, err)
	c4, err := remote.InvokeAsync4(ctx, w, func(ctx context.Context, a, b, c, d int) (int, error) { return a + b + c + d, nil }, 1, 2, 3, 4)
	require.NoError(t, err)

	for want, c := range map[int]*remote.Completion[int]{3: c2, 6: c3, 10: c4} {
		got, err := c.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = remote.InvokeAsync[int](ctx, w, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.InvokeAsync1[int, int](ctx, w, nil, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.InvokeAsync2[int, int, int](ctx, nil, func(ctx context.Context, a, b int) (int, error) { return 0, nil }, 1, 2)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.InvokeAsync5[int, int, int, int, int, int](ctx, w, nil, 1, 2, 3, 4, 5)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = remote.InvokeAsync1(ctx, w, func(ctx context.Context, f func()) (int, error) { return 0, nil }, func() {})
	assert.ErrorIs(t, err, errors.ErrMarshal)
}

type unregistered struct {
	remote.Object
}

func TestProxy_Lifecycle(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	d, err := w.Domain()
	require.NoError(t, err)

	p, err := remote.NewProxy[*counter](ctx, w, 5)
	require.NoError(t, err)
	assert.False(t, p.Owns())

	first, err := p.RemoteObject()
	require.NoError(t, err)
	second, err := p.RemoteObject()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 5, first.start)
	assert.Equal(t, d.ID().String(), first.domainID)

	pd, err := p.Domain()
	require.NoError(t, err)
	assert.Same(t, d, pd)
	assert.Equal(t, 1, d.Objects().Len())

	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))
	assert.True(t, p.IsDisposed())
	assert.Equal(t, 0, d.Objects().Len())
	assert.False(t, w.IsDisposed(), "shared wrapper stays open")

	_, err = p.RemoteObject()
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestProxy_CreateOwnsWrapper(t *testing.T) {
	ctx := context.Background()
	d, err := domain.New(ctx, &domain.Setup{ApplicationBase: t.TempDir()})
	require.NoError(t, err)

	p, err := remote.CreateProxy[*counter](ctx, d)
	require.NoError(t, err)
	assert.True(t, p.Owns())

	require.NoError(t, p.Close(ctx))
	assert.True(t, d.IsUnloaded())
}

func TestProxy_Unregistered(t *testing.T) {
	w := newWrapper(t)
	assert.False(t, remote.Registered[*unregistered]())
	assert.True(t, remote.Registered[*counter]())

	_, err := remote.NewProxy[*unregistered](context.Background(), w)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindRegistration, e.Kind)
}

func TestWithProxy(t *testing.T) {
	ctx := context.Background()
	w := newWrapper(t)
	d, _ := w.Domain()

	err := remote.WithProxy(ctx, w, func(ctx context.Context, c *counter) error {
		c.hits.Add(1)
		assert.Equal(t, 1, d.Objects().Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Objects().Len())
}

func TestCopy(t *testing.T) {
	var nilPtr *composite
	got, err := remote.Copy(nilPtr)
	require.NoError(t, err)
	assert.Nil(t, got)

	m, err := remote.Copy(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, m)

	b := &box{Value1: 3}
	same, err := remote.Copy(b)
	require.NoError(t, err)
	assert.Same(t, b, same)

	_, err = remote.Copy(make(chan int))
	assert.ErrorIs(t, err, errors.ErrMarshal)
}

func TestCompletion_SingleAssignment(t *testing.T) {
	c := remote.NewCompletion[int]()
	assert.Equal(t, remote.Pending, c.State())

	assert.True(t, c.SetResult(1))
	assert.False(t, c.SetResult(2))
	assert.False(t, c.SetException(fmt.Errorf("late")))
	assert.False(t, c.SetCanceled())

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
	got, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, "succeeded", c.State().String())
}
