package cart

import "github.com/shopspring/decimal"

// Totals is fully derived from items, coupons, shipping and fees plus
// tax configuration. It is never hand-patched: any mutation of those
// inputs re-runs the calculator.
type Totals struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	SubtotalTax       decimal.Decimal `json:"subtotal_tax"`
	DiscountTotal     decimal.Decimal `json:"discount_total"`
	DiscountTax       decimal.Decimal `json:"discount_tax"`
	ShippingTotal     decimal.Decimal `json:"shipping_total"`
	ShippingTax       decimal.Decimal `json:"shipping_tax"`
	FeeTotal          decimal.Decimal `json:"fee_total"`
	FeeTax            decimal.Decimal `json:"fee_tax"`
	CartContentsTotal decimal.Decimal `json:"cart_contents_total"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	Total             decimal.Decimal `json:"total"`
}

// ZeroTotals returns totals with every field at zero.
func ZeroTotals() Totals {
	zero := decimal.Zero
	return Totals{
		Subtotal:          zero,
		SubtotalTax:       zero,
		DiscountTotal:     zero,
		DiscountTax:       zero,
		ShippingTotal:     zero,
		ShippingTax:       zero,
		FeeTotal:          zero,
		FeeTax:            zero,
		CartContentsTotal: zero,
		TotalTax:          zero,
		Total:             zero,
	}
}

// Equal compares every field exactly.
func (t Totals) Equal(other Totals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.SubtotalTax.Equal(other.SubtotalTax) &&
		t.DiscountTotal.Equal(other.DiscountTotal) &&
		t.DiscountTax.Equal(other.DiscountTax) &&
		t.ShippingTotal.Equal(other.ShippingTotal) &&
		t.ShippingTax.Equal(other.ShippingTax) &&
		t.FeeTotal.Equal(other.FeeTotal) &&
		t.FeeTax.Equal(other.FeeTax) &&
		t.CartContentsTotal.Equal(other.CartContentsTotal) &&
		t.TotalTax.Equal(other.TotalTax) &&
		t.Total.Equal(other.Total)
}
