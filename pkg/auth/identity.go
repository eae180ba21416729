// Package auth provides the read-only identity context the engine
// consumes. Token issuance and account management live with the remote
// backend; this package only verifies and carries identity.
package auth

import "context"

// Identity correlates a cart session with an authenticated user.
// The zero value is anonymous.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

// Provider yields the current identity for a request context.
type Provider interface {
	Identity(ctx context.Context) Identity
}

type ctxKey struct{}

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the attached identity, or anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Identity{}
}

// ContextProvider reads identity straight from the request context,
// as populated by the HTTP middleware.
type ContextProvider struct{}

func (ContextProvider) Identity(ctx context.Context) Identity {
	return IdentityFromContext(ctx)
}

// StaticProvider always returns the same identity. Useful for embedded
// use and tests.
type StaticProvider struct {
	ID Identity
}

func (s StaticProvider) Identity(context.Context) Identity {
	return s.ID
}
