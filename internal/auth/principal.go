package auth

import "context"

type principalKey struct{}

// WithUserID stores the authenticated user's identifier on the context. The
// identifier is opaque and pre-validated by the token verification layer.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, userID)
}

// UserIDFromContext returns the authenticated user's identifier, or an empty
// string for unauthenticated requests.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(principalKey{}).(string); ok {
		return id
	}
	return ""
}
