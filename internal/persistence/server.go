package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/db"
	"github.com/storefront-kit/cartengine/pkg/db/models"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

// ServerCartStore holds the per-customer authoritative cart in
// postgres. It is the in-process implementation of the sync transport
// used when the server-side cart lives in the same deployment.
type ServerCartStore struct {
	client *db.Client
}

// NewServerCartStore builds the database-backed server cart endpoint.
func NewServerCartStore(client *db.Client) (*ServerCartStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client is required")
	}
	return &ServerCartStore{client: client}, nil
}

// GetServerCart returns the customer's server-held cart, or (nil, nil)
// when none has been uploaded yet.
func (s *ServerCartStore) GetServerCart(ctx context.Context, identity auth.Identity) (*cart.Cart, error) {
	if !identity.Authenticated || identity.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSyncAuth, "authenticated identity required")
	}
	var record models.ServerCart
	err := s.client.DB().WithContext(ctx).
		Where("customer_id = ?", identity.UserID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "loading server cart")
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(record.Payload), &c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "decoding server cart")
	}
	return &c, nil
}

// PutServerCart upserts the customer's server-held cart.
func (s *ServerCartStore) PutServerCart(ctx context.Context, identity auth.Identity, c *cart.Cart) error {
	if !identity.Authenticated || identity.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeSyncAuth, "authenticated identity required")
	}
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "encoding server cart")
	}
	record := models.ServerCart{
		CustomerID:  identity.UserID,
		Payload:     string(payload),
		ItemKeys:    itemKeys(c),
		CouponCodes: couponCodes(c),
		ItemCount:   c.ItemCount(),
	}
	result := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "item_keys", "coupon_codes", "item_count", "updated_at"}),
		}).
		Create(&record)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "saving server cart")
	}
	return nil
}

func itemKeys(c *cart.Cart) pq.StringArray {
	keys := make(pq.StringArray, 0, len(c.Items))
	for i := range c.Items {
		keys = append(keys, c.Items[i].Key)
	}
	return keys
}

func couponCodes(c *cart.Cart) pq.StringArray {
	codes := make(pq.StringArray, 0, len(c.Coupons))
	for i := range c.Coupons {
		codes = append(codes, c.Coupons[i].Code)
	}
	return codes
}
