package remote

import (
	"context"
	"reflect"
	"sync"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/errors"
)

// Object marks a type as crossing the boundary by reference. Embed it:
//
//	type Loader struct {
//		remote.Object
//		...
//	}
type Object struct{}

func (Object) remotable() {}

// Remotable is implemented by every type embedding Object.
type Remotable interface {
	remotable()
}

// Factory activates a T inside d. args were already copied across the
// boundary.
type Factory[T Remotable] func(ctx context.Context, d *domain.Domain, args []any) (T, error)

type activator func(ctx context.Context, d *domain.Domain, args []any) (any, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[reflect.Type]activator)
)

// Register makes T constructible inside a domain. Registering the same type
// again replaces its factory.
func Register[T Remotable](f Factory[T]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reflect.TypeFor[T]()] = func(ctx context.Context, d *domain.Domain, args []any) (any, error) {
		return f(ctx, d, args)
	}
}

// Registered reports whether T has a factory.
func Registered[T Remotable]() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[reflect.TypeFor[T]()]
	return ok
}

func activate[T Remotable](ctx context.Context, d *domain.Domain, args []any) (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()

	registryMu.RLock()
	act, ok := registry[typ]
	registryMu.RUnlock()
	if !ok {
		return zero, errors.New(errors.PhaseLifecycle, errors.KindRegistration).
			GoType(typ.String()).
			Detail("no factory registered").
			Build()
	}

	v, err := act(domain.WithDomain(ctx, d), d, args)
	if err != nil {
		return zero, err
	}
	obj, ok := v.(T)
	if !ok {
		return zero, errors.New(errors.PhaseLifecycle, errors.KindRegistration).
			GoType(typ.String()).
			Detail("factory returned %T", v).
			Build()
	}
	return obj, nil
}
