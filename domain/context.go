package domain

import "context"

type ctxKey struct{}

type chainKey struct{}

type chainLink struct {
	parent *chainLink
	domain *Domain
	name   string
}

// WithDomain returns a context that carries d as the current domain.
func WithDomain(ctx context.Context, d *Domain) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// FromContext returns the domain code is currently running in.
func FromContext(ctx context.Context) (*Domain, bool) {
	d, ok := ctx.Value(ctxKey{}).(*Domain)
	return d, ok && d != nil
}

// Current returns the domain carried by ctx, or the primary domain.
func Current(ctx context.Context) *Domain {
	if d, ok := FromContext(ctx); ok {
		return d
	}
	return Primary()
}

func withResolving(ctx context.Context, d *Domain, name string) context.Context {
	parent, _ := ctx.Value(chainKey{}).(*chainLink)
	return context.WithValue(ctx, chainKey{}, &chainLink{parent: parent, domain: d, name: name})
}

func resolving(ctx context.Context, d *Domain, name string) bool {
	link, _ := ctx.Value(chainKey{}).(*chainLink)
	for ; link != nil; link = link.parent {
		if link.domain == d && link.name == name {
			return true
		}
	}
	return false
}

// WithLoading marks name as in flight in d. Resolution of name further down
// the same chain misses instead of recursing.
func WithLoading(ctx context.Context, d *Domain, name string) context.Context {
	if resolving(ctx, d, name) {
		return ctx
	}
	return withResolving(ctx, d, name)
}
