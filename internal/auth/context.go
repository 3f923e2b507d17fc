package auth

import "context"

// Unexported key types keep request-scoped auth state from colliding
// with values set by other packages.
type principalContextKey struct{}
type tokenContextKey struct{}

// ContextWithPrincipal stamps the request context with the caller
// resolved by Authenticate. Handlers downstream read it back instead of
// re-validating the access token.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext reports the authenticated caller, if any. The
// second return is false on anonymous requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.User == nil {
		return Principal{}, false
	}
	return p, true
}

// ContextWithToken keeps the raw bearer token alongside the principal
// so audit entries can reference the session without re-parsing JWTs.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the raw bearer token attached by the auth
// middleware, or false when the request carried none.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
