// Package totals implements the derived-totals pipeline. Calculate is a
// pure function of its inputs: no I/O, no clock, no hidden state.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Calculator runs the totals pipeline under one tax configuration.
type Calculator struct {
	cfg          config.TaxConfig
	explicitRate *decimal.Decimal
}

// NewCalculator builds a calculator, parsing any explicit rate from the
// configuration.
func NewCalculator(cfg config.TaxConfig) (*Calculator, error) {
	rate, err := cfg.Rate()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax rate")
	}
	return &Calculator{cfg: cfg, explicitRate: rate}, nil
}

// Input is everything the pipeline reads. CustomerTaxRate, when set,
// overrides both the configured rate and the country fallback.
type Input struct {
	Items           []cart.Item
	Coupons         []cart.AppliedCoupon
	ShippingMethods []cart.ShippingMethod
	Fees            []cart.Fee
	CustomerTaxRate *decimal.Decimal
}

// Calculate runs the staged pipeline in strict order. Each stage depends
// only on the stages before it; reordering is a contract break.
func (c *Calculator) Calculate(in Input) cart.Totals {
	rate := c.resolveRateFraction(in.CustomerTaxRate)

	// Stage 1: subtotal.
	subtotal := decimal.Zero
	for _, item := range in.Items {
		subtotal = subtotal.Add(c.itemBase(item))
	}
	subtotal = c.stageRound(subtotal)

	// Stage 2: subtotal tax.
	subtotalTax := decimal.Zero
	if c.taxActive(rate) {
		for _, item := range in.Items {
			subtotalTax = subtotalTax.Add(c.itemTax(item, rate))
		}
	}
	subtotalTax = c.stageRound(subtotalTax)

	// Stage 3: discounts.
	discountTotal := decimal.Zero
	for _, coupon := range in.Coupons {
		discountTotal = discountTotal.Add(c.couponDiscount(coupon, in.Items))
	}
	discountTotal = c.stageRound(discountTotal)

	discountTax := decimal.Zero
	if c.taxActive(rate) && !c.cfg.PricesIncludeTax {
		discountTax = c.stageRound(discountTotal.Mul(rate))
	}

	// Stage 4: contents after discount.
	contents := maxZero(subtotal.Sub(discountTotal))
	contentsTax := maxZero(subtotalTax.Sub(discountTax))

	// Stage 5: shipping. Single-method selection: the first enabled
	// method is charged.
	shippingTotal := decimal.Zero
	shippingTax := decimal.Zero
	if method := firstEnabledShipping(in.ShippingMethods); method != nil {
		shippingTotal = c.stageRound(method.Cost)
		switch {
		case len(method.ItemizedTaxes) > 0:
			for _, tax := range method.ItemizedTaxes {
				shippingTax = shippingTax.Add(tax)
			}
		case method.Taxable && c.taxActive(rate):
			shippingTax = shippingTotal.Mul(rate)
		}
		shippingTax = c.stageRound(shippingTax)
	}

	// Stage 6: fees, each with independent taxability.
	feeTotal := decimal.Zero
	feeTax := decimal.Zero
	for _, fee := range in.Fees {
		feeTotal = feeTotal.Add(fee.Amount)
		if fee.Taxable && c.taxActive(rate) {
			feeTax = feeTax.Add(fee.Amount.Mul(rate))
		}
	}
	feeTotal = c.stageRound(feeTotal)
	feeTax = c.stageRound(feeTax)

	// Stage 7: grand total.
	totalTax := maxZero(contentsTax.Add(shippingTax).Add(feeTax))
	total := contents.Add(shippingTotal).Add(feeTotal)
	if !c.cfg.PricesIncludeTax {
		total = total.Add(totalTax)
	}

	// Stage 8: presented totals are always two decimals.
	return cart.Totals{
		Subtotal:          round2(subtotal),
		SubtotalTax:       round2(subtotalTax),
		DiscountTotal:     round2(discountTotal),
		DiscountTax:       round2(discountTax),
		ShippingTotal:     round2(shippingTotal),
		ShippingTax:       round2(shippingTax),
		FeeTotal:          round2(feeTotal),
		FeeTax:            round2(feeTax),
		CartContentsTotal: round2(contents),
		TotalTax:          round2(totalTax),
		Total:             round2(total),
	}
}

// itemBase is the per-line subtotal contribution: the charged line total
// when prices include tax, the regular price otherwise.
func (c *Calculator) itemBase(item cart.Item) decimal.Decimal {
	if c.cfg.PricesIncludeTax {
		return item.TotalPrice
	}
	return item.RegularPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// itemTax extracts tax from inclusive prices via rate/(1+rate) or adds
// it to exclusive prices via the rate.
func (c *Calculator) itemTax(item cart.Item, rate decimal.Decimal) decimal.Decimal {
	base := c.itemBase(item)
	if c.cfg.PricesIncludeTax {
		return base.Mul(rate).Div(one.Add(rate))
	}
	return base.Mul(rate)
}

func (c *Calculator) couponDiscount(coupon cart.AppliedCoupon, items []cart.Item) decimal.Decimal {
	eligibleSubtotal := decimal.Zero
	eligibleQty := int64(0)
	for _, item := range items {
		if !coupon.AppliesTo(item.ProductID) {
			continue
		}
		eligibleSubtotal = eligibleSubtotal.Add(c.itemBase(item))
		eligibleQty += int64(item.Quantity)
	}
	if eligibleSubtotal.IsZero() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercent:
		discount = eligibleSubtotal.Mul(coupon.Amount).Div(hundred)
		if coupon.MaximumAmount != nil && discount.GreaterThan(*coupon.MaximumAmount) {
			discount = *coupon.MaximumAmount
		}
	case enums.DiscountTypeFixedProduct:
		discount = coupon.Amount.Mul(decimal.NewFromInt(eligibleQty))
		if discount.GreaterThan(eligibleSubtotal) {
			discount = eligibleSubtotal
		}
	default: // fixed_cart
		discount = coupon.Amount
		if discount.GreaterThan(eligibleSubtotal) {
			discount = eligibleSubtotal
		}
	}
	return c.stageRound(discount)
}

func (c *Calculator) taxActive(rate decimal.Decimal) bool {
	return c.cfg.Enabled && rate.IsPositive()
}

// stageRound keeps two decimals when rounding at subtotal is configured,
// otherwise four so rounding error does not compound across stages.
func (c *Calculator) stageRound(d decimal.Decimal) decimal.Decimal {
	if c.cfg.RoundAtSubtotal {
		return d.Round(2)
	}
	return d.Round(4)
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func firstEnabledShipping(methods []cart.ShippingMethod) *cart.ShippingMethod {
	for i := range methods {
		if methods[i].Enabled {
			return &methods[i]
		}
	}
	return nil
}
