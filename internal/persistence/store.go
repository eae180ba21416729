// Package persistence provides the cart storage backends: in-memory,
// redis-backed session storage, and a database-backed store for
// device-local durability.
package persistence

import (
	"context"

	"github.com/storefront-kit/cartengine/internal/cart"
)

// CartStore persists cart snapshots keyed by session. Load returns
// (nil, nil) when no cart has been saved for the session.
type CartStore interface {
	Save(ctx context.Context, c *cart.Cart) error
	Load(ctx context.Context, sessionID string) (*cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}
