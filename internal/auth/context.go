package auth

import (
	"context"
)

// Identity carries the verified caller derived from the identity
// provider's token. Subject is the stable token identifier used as the
// foreign key for local user ownership.
// NOTE: Do not place raw tokens here.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type identityKeyType struct{}

var identityKey = identityKeyType{}

// WithIdentity attaches an identity to context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the identity from context (nil if absent)
func GetIdentity(ctx context.Context) *Identity {
	v := ctx.Value(identityKey)
	if v == nil {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
