// Package cart holds the shared cart data model and the orchestrating
// service. A Cart value is owned by exactly one service session; other
// components borrow snapshots and hand back new ones.
package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the aggregate root: ordered items unique by key, coupons
// unique by code, chosen shipping and fees, and derived totals.
type Cart struct {
	Items           []Item           `json:"items"`
	Coupons         []AppliedCoupon  `json:"applied_coupons,omitempty"`
	ShippingMethods []ShippingMethod `json:"shipping_methods,omitempty"`
	Fees            []Fee            `json:"fees,omitempty"`
	Totals          Totals           `json:"totals"`
	SessionID       string           `json:"session_id"`
	CustomerID      string           `json:"customer_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// New returns an empty cart for the session.
func New(sessionID string, now time.Time) *Cart {
	return &Cart{
		Items:     []Item{},
		Totals:    ZeroTotals(),
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the aggregate quantity across all lines.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItem returns the index of the line with the given key, or -1.
func (c *Cart) FindItem(key string) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

// FindCoupon returns the index of the applied coupon with the given
// code, or -1.
func (c *Cart) FindCoupon(code string) int {
	for i := range c.Coupons {
		if c.Coupons[i].Code == code {
			return i
		}
	}
	return -1
}

// RemoveItemAt drops the line at index i preserving order.
func (c *Cart) RemoveItemAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Touch bumps the freshness signal used as the merge tie-breaker.
func (c *Cart) Touch(now time.Time) {
	c.UpdatedAt = now
}

// Clone returns a deep copy. Mutating operations work on a clone and
// swap it in only on success, so a failed operation leaves the cart
// unchanged.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	if c.Coupons != nil {
		out.Coupons = make([]AppliedCoupon, len(c.Coupons))
		for i, coupon := range c.Coupons {
			out.Coupons[i] = coupon.Clone()
		}
	}
	if c.ShippingMethods != nil {
		out.ShippingMethods = make([]ShippingMethod, len(c.ShippingMethods))
		for i, method := range c.ShippingMethods {
			out.ShippingMethods[i] = method
			out.ShippingMethods[i].ItemizedTaxes = append([]decimal.Decimal(nil), method.ItemizedTaxes...)
		}
	}
	if c.Fees != nil {
		out.Fees = append([]Fee(nil), c.Fees...)
	}
	return &out
}
