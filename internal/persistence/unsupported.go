package persistence

import (
	"context"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/auth"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

// UnsupportedServerStore is the server cart endpoint for deployments
// with no server-side persistence configured. Every call fails loudly:
// silently pretending to persist would break sync convergence.
type UnsupportedServerStore struct{}

func (UnsupportedServerStore) GetServerCart(ctx context.Context, identity auth.Identity) (*cart.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnsupported, "no server cart endpoint configured")
}

func (UnsupportedServerStore) PutServerCart(ctx context.Context, identity auth.Identity, c *cart.Cart) error {
	return pkgerrors.New(pkgerrors.CodeUnsupported, "no server cart endpoint configured")
}
