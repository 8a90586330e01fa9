package auth

import "context"

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
// Handlers receive the principal explicitly through this value; there is no
// ambient or thread-local lookup.
func ContextWithPrincipal(ctx context.Context, principal *User) context.Context {
	if principal == nil {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*User, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*User)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
