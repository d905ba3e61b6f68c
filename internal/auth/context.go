package auth

import "context"

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

// PrincipalFromContext returns the caller identity injected by the
// middleware, or nil when the middleware never ran.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(ContextPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}
