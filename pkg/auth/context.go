package auth

import "context"

type identityKey struct{}

// SetIdentity attaches the caller identity resolved by Middleware.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext is nil on stdio sessions and on HTTP servers
// running without inbound auth.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
