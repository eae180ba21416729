package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/catalog"
	"github.com/storefront-kit/cartengine/pkg/enums"
)

// AppliedCoupon is the coupon snapshot held by the cart, unique by code.
type AppliedCoupon struct {
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

// CouponFromCatalog snapshots current coupon truth into the cart shape.
func CouponFromCatalog(c *catalog.Coupon) AppliedCoupon {
	applied := AppliedCoupon{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		Amount:        c.Amount,
		IndividualUse: c.IndividualUse,
		UsageCount:    c.UsageCount,
	}
	applied.MinimumAmount = cloneDecimalPtr(c.MinimumAmount)
	applied.MaximumAmount = cloneDecimalPtr(c.MaximumAmount)
	applied.ProductIDs = append([]string(nil), c.ProductIDs...)
	applied.ExcludedProductIDs = append([]string(nil), c.ExcludedProductIDs...)
	if c.ExpiryDate != nil {
		expiry := *c.ExpiryDate
		applied.ExpiryDate = &expiry
	}
	applied.UsageLimit = cloneIntPtr(c.UsageLimit)
	return applied
}

// AppliesTo reports whether the coupon's include/exclude restriction
// sets admit the given product.
func (a *AppliedCoupon) AppliesTo(productID string) bool {
	for _, excluded := range a.ExcludedProductIDs {
		if excluded == productID {
			return false
		}
	}
	if len(a.ProductIDs) == 0 {
		return true
	}
	for _, included := range a.ProductIDs {
		if included == productID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the applied coupon.
func (a AppliedCoupon) Clone() AppliedCoupon {
	out := a
	out.MinimumAmount = cloneDecimalPtr(a.MinimumAmount)
	out.MaximumAmount = cloneDecimalPtr(a.MaximumAmount)
	out.ProductIDs = append([]string(nil), a.ProductIDs...)
	out.ExcludedProductIDs = append([]string(nil), a.ExcludedProductIDs...)
	if a.ExpiryDate != nil {
		expiry := *a.ExpiryDate
		out.ExpiryDate = &expiry
	}
	out.UsageLimit = cloneIntPtr(a.UsageLimit)
	return out
}

// ShippingMethod describes one delivery option attached to the cart.
// The totals pipeline charges the first enabled method.
type ShippingMethod struct {
	ID            string            `json:"id"`
	Label         string            `json:"label"`
	Cost          decimal.Decimal   `json:"cost"`
	Enabled       bool              `json:"enabled"`
	Taxable       bool              `json:"taxable"`
	ItemizedTaxes []decimal.Decimal `json:"itemized_taxes,omitempty"`
}

// Fee is one extra charge with independent, explicit taxability.
type Fee struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}
