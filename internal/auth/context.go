package auth

import "context"

func contextWithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ContextUsername, claims.Username)
	return context.WithValue(ctx, ContextRole, claims.Role)
}

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(ContextUsername).(string)
	return username, ok
}
