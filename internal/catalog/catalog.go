// Package catalog defines the read-only collaborator contracts through
// which the engine observes live product and coupon truth. The remote
// commerce backend behind them is not part of this module.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/pkg/enums"
)

// Product is the catalog's current view of one purchasable product or
// variation.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Status        enums.ProductStatus `json:"status"`
	Price         decimal.Decimal     `json:"price"`
	RegularPrice  decimal.Decimal     `json:"regular_price"`
	SalePrice     *decimal.Decimal    `json:"sale_price,omitempty"`
	StockStatus   enums.StockStatus   `json:"stock_status"`
	StockQuantity *int                `json:"stock_quantity,omitempty"` // nil when stock is unmanaged
	Backorders    bool                `json:"backorders_allowed"`
	HasVariations bool                `json:"has_variations"`
	MinQuantity   *int                `json:"min_quantity,omitempty"`
	MaxQuantity   *int                `json:"max_quantity,omitempty"`
	QuantityStep  *int                `json:"quantity_step,omitempty"`
}

// EffectivePrice returns the sale price when one is set, otherwise the
// regular price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.RegularPrice
}

// ManagedStock reports whether the catalog tracks a concrete quantity.
func (p *Product) ManagedStock() bool {
	return p.StockQuantity != nil
}

// Coupon is the catalog's current view of one discount code.
type Coupon struct {
	Code               string             `json:"code"`
	DiscountType       enums.DiscountType `json:"discount_type"`
	Amount             decimal.Decimal    `json:"amount"`
	MinimumAmount      *decimal.Decimal   `json:"minimum_amount,omitempty"`
	MaximumAmount      *decimal.Decimal   `json:"maximum_amount,omitempty"`
	ProductIDs         []string           `json:"product_ids,omitempty"`
	ExcludedProductIDs []string           `json:"excluded_product_ids,omitempty"`
	IndividualUse      bool               `json:"individual_use"`
	ExpiryDate         *time.Time         `json:"expiry_date,omitempty"`
	UsageLimit         *int               `json:"usage_limit,omitempty"`
	UsageCount         int                `json:"usage_count"`
}

// Expired reports whether the coupon's expiry date has passed at the
// given instant.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiryDate != nil && now.After(*c.ExpiryDate)
}

// UsageExhausted reports whether the coupon's usage limit is spent.
func (c *Coupon) UsageExhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// ProductReader fetches current product truth by id.
type ProductReader interface {
	FetchProduct(ctx context.Context, productID string) (*Product, error)
}

// CouponReader fetches current coupon truth by code.
type CouponReader interface {
	FetchCoupon(ctx context.Context, code string) (*Coupon, error)
}
