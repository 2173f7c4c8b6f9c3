package storage

import "context"

// ownerKey is a private type for the owner context key.
type ownerKey struct{}

// SetOwner injects the owner that thread operations are scoped to.
func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// GetOwner extracts the owner from the context. An empty string means
// single-user mode: no scoping is applied.
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}
