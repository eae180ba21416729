package totals

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
)

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return d
}

func decPtr(t *testing.T, raw string) *decimal.Decimal {
	t.Helper()
	d := dec(t, raw)
	return &d
}

func newCalc(t *testing.T, cfg config.TaxConfig) *Calculator {
	t.Helper()
	calc, err := NewCalculator(cfg)
	if err != nil {
		t.Fatalf("building calculator: %v", err)
	}
	return calc
}

func testItem(t *testing.T, productID, price string, qty int) cart.Item {
	t.Helper()
	p := dec(t, price)
	item := cart.Item{
		Key:          cart.ItemKey(productID, "", nil),
		ProductID:    productID,
		Quantity:     qty,
		Price:        p,
		RegularPrice: p,
	}
	item.Recalculate()
	return item
}

func exclusiveNoTax() config.TaxConfig {
	return config.TaxConfig{Enabled: false, RoundAtSubtotal: true, Country: "US"}
}

func exclusiveWithRate(rate string) config.TaxConfig {
	return config.TaxConfig{Enabled: true, RoundAtSubtotal: true, Country: "US", RatePercent: rate}
}

func TestCalculateEmpty(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	totals := calc.Calculate(Input{})

	if !totals.Total.Equal(decimal.Zero) {
		t.Fatalf("expected zero total, got %s", totals.Total)
	}
	if totals.Total.StringFixed(2) != "0.00" {
		t.Fatalf("expected 0.00, got %s", totals.Total.StringFixed(2))
	}
}

func TestCalculateDeterministicAndOrderIndependent(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("8.25"))
	a := testItem(t, "p-1", "19.99", 2)
	b := testItem(t, "p-2", "4.50", 5)
	c := testItem(t, "p-3", "120.00", 1)

	first := calc.Calculate(Input{Items: []cart.Item{a, b, c}})
	second := calc.Calculate(Input{Items: []cart.Item{a, b, c}})
	permuted := calc.Calculate(Input{Items: []cart.Item{c, a, b}})

	if !first.Equal(second) {
		t.Fatal("identical inputs must produce identical totals")
	}
	if !first.Equal(permuted) {
		t.Fatal("item order must not change any total")
	}
}

func TestPercentDiscountCap(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	item := testItem(t, "p-1", "1000.00", 1)
	coupon := cart.AppliedCoupon{
		Code:          "HALF",
		DiscountType:  enums.DiscountTypePercent,
		Amount:        dec(t, "50"),
		MaximumAmount: decPtr(t, "10"),
	}

	totals := calc.Calculate(Input{Items: []cart.Item{item}, Coupons: []cart.AppliedCoupon{coupon}})

	if totals.DiscountTotal.StringFixed(2) != "10.00" {
		t.Fatalf("expected capped discount 10.00, got %s", totals.DiscountTotal)
	}
	if totals.Total.StringFixed(2) != "990.00" {
		t.Fatalf("expected total 990.00, got %s", totals.Total)
	}
}

func TestFixedCartDiscountCappedAtEligibleSubtotal(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	item := testItem(t, "p-1", "5.00", 2)
	coupon := cart.AppliedCoupon{
		Code:         "BIG",
		DiscountType: enums.DiscountTypeFixedCart,
		Amount:       dec(t, "50"),
	}

	totals := calc.Calculate(Input{Items: []cart.Item{item}, Coupons: []cart.AppliedCoupon{coupon}})

	if totals.DiscountTotal.StringFixed(2) != "10.00" {
		t.Fatalf("expected discount capped at 10.00, got %s", totals.DiscountTotal)
	}
	if !totals.Total.Equal(decimal.Zero) {
		t.Fatalf("expected zero total, got %s", totals.Total)
	}
}

func TestFixedProductDiscountCountsEligibleQuantity(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	eligible := testItem(t, "p-1", "20.00", 3)
	excluded := testItem(t, "p-2", "20.00", 1)
	coupon := cart.AppliedCoupon{
		Code:         "PERUNIT",
		DiscountType: enums.DiscountTypeFixedProduct,
		Amount:       dec(t, "2.50"),
		ProductIDs:   []string{"p-1"},
	}

	totals := calc.Calculate(Input{Items: []cart.Item{eligible, excluded}, Coupons: []cart.AppliedCoupon{coupon}})

	if totals.DiscountTotal.StringFixed(2) != "7.50" {
		t.Fatalf("expected 2.50 x 3 = 7.50, got %s", totals.DiscountTotal)
	}
}

func TestCouponExcludedProducts(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	item := testItem(t, "p-1", "100.00", 1)
	coupon := cart.AppliedCoupon{
		Code:               "NOPE",
		DiscountType:       enums.DiscountTypePercent,
		Amount:             dec(t, "10"),
		ExcludedProductIDs: []string{"p-1"},
	}

	totals := calc.Calculate(Input{Items: []cart.Item{item}, Coupons: []cart.AppliedCoupon{coupon}})

	if !totals.DiscountTotal.Equal(decimal.Zero) {
		t.Fatalf("expected no discount, got %s", totals.DiscountTotal)
	}
}

func TestExclusiveTaxAddsOnTop(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("10"))
	item := testItem(t, "p-1", "100.00", 1)

	totals := calc.Calculate(Input{Items: []cart.Item{item}})

	if totals.Subtotal.StringFixed(2) != "100.00" {
		t.Fatalf("unexpected subtotal: %s", totals.Subtotal)
	}
	if totals.SubtotalTax.StringFixed(2) != "10.00" {
		t.Fatalf("unexpected subtotal tax: %s", totals.SubtotalTax)
	}
	if totals.Total.StringFixed(2) != "110.00" {
		t.Fatalf("unexpected total: %s", totals.Total)
	}
}

func TestInclusiveTaxIsExtracted(t *testing.T) {
	t.Parallel()

	cfg := config.TaxConfig{
		Enabled:          true,
		PricesIncludeTax: true,
		RoundAtSubtotal:  true,
		Country:          "GB",
	}
	calc := newCalc(t, cfg)
	item := testItem(t, "p-1", "120.00", 1) // 100 + 20% VAT

	totals := calc.Calculate(Input{Items: []cart.Item{item}})

	if totals.Subtotal.StringFixed(2) != "120.00" {
		t.Fatalf("inclusive subtotal keeps charged price, got %s", totals.Subtotal)
	}
	if totals.SubtotalTax.StringFixed(2) != "20.00" {
		t.Fatalf("expected extracted tax 20.00, got %s", totals.SubtotalTax)
	}
	if totals.Total.StringFixed(2) != "120.00" {
		t.Fatalf("inclusive total must not add tax again, got %s", totals.Total)
	}
}

func TestShippingFirstEnabledMethod(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("10"))
	item := testItem(t, "p-1", "10.00", 1)
	methods := []cart.ShippingMethod{
		{ID: "slow", Cost: dec(t, "3.00"), Enabled: false},
		{ID: "flat", Cost: dec(t, "5.00"), Enabled: true, Taxable: true},
		{ID: "express", Cost: dec(t, "15.00"), Enabled: true, Taxable: true},
	}

	totals := calc.Calculate(Input{Items: []cart.Item{item}, ShippingMethods: methods})

	if totals.ShippingTotal.StringFixed(2) != "5.00" {
		t.Fatalf("expected first enabled method, got %s", totals.ShippingTotal)
	}
	if totals.ShippingTax.StringFixed(2) != "0.50" {
		t.Fatalf("unexpected shipping tax: %s", totals.ShippingTax)
	}
}

func TestShippingItemizedTaxesWin(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("10"))
	methods := []cart.ShippingMethod{
		{
			ID:            "flat",
			Cost:          dec(t, "5.00"),
			Enabled:       true,
			Taxable:       true,
			ItemizedTaxes: []decimal.Decimal{dec(t, "0.30"), dec(t, "0.12")},
		},
	}

	totals := calc.Calculate(Input{ShippingMethods: methods})

	if totals.ShippingTax.StringFixed(2) != "0.42" {
		t.Fatalf("itemized taxes should be summed, got %s", totals.ShippingTax)
	}
}

func TestFeeTaxabilityIsIndependent(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("10"))
	fees := []cart.Fee{
		{ID: "gift", Amount: dec(t, "4.00"), Taxable: true},
		{ID: "handling", Amount: dec(t, "6.00"), Taxable: false},
	}

	totals := calc.Calculate(Input{Fees: fees})

	if totals.FeeTotal.StringFixed(2) != "10.00" {
		t.Fatalf("unexpected fee total: %s", totals.FeeTotal)
	}
	if totals.FeeTax.StringFixed(2) != "0.40" {
		t.Fatalf("only the taxable fee is taxed, got %s", totals.FeeTax)
	}
}

func TestDiscountNeverDrivesContentsNegative(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveNoTax())
	item := testItem(t, "p-1", "5.00", 1)
	coupons := []cart.AppliedCoupon{
		{Code: "A", DiscountType: enums.DiscountTypeFixedCart, Amount: dec(t, "5.00")},
		{Code: "B", DiscountType: enums.DiscountTypeFixedCart, Amount: dec(t, "5.00")},
	}

	totals := calc.Calculate(Input{Items: []cart.Item{item}, Coupons: coupons})

	if totals.CartContentsTotal.IsNegative() || totals.Total.IsNegative() {
		t.Fatalf("totals must clamp at zero: %s / %s", totals.CartContentsTotal, totals.Total)
	}
}

func TestIntermediatePrecisionWithoutSubtotalRounding(t *testing.T) {
	t.Parallel()

	cfg := config.TaxConfig{Enabled: true, RoundAtSubtotal: false, Country: "US", RatePercent: "8.875"}
	calc := newCalc(t, cfg)
	item := testItem(t, "p-1", "0.33", 3)

	totals := calc.Calculate(Input{Items: []cart.Item{item}})

	// 0.99 * 0.08875 = 0.0878625 -> 0.0879 at stage precision -> 0.09 presented.
	if totals.SubtotalTax.StringFixed(2) != "0.09" {
		t.Fatalf("unexpected presented tax: %s", totals.SubtotalTax)
	}
	if totals.Total.StringFixed(2) != "1.08" {
		t.Fatalf("unexpected total: %s", totals.Total)
	}
}

func TestCountryFallbackRate(t *testing.T) {
	t.Parallel()

	cfg := config.TaxConfig{Enabled: true, RoundAtSubtotal: true, Country: "de"}
	calc := newCalc(t, cfg)
	item := testItem(t, "p-1", "100.00", 1)

	totals := calc.Calculate(Input{Items: []cart.Item{item}})

	if totals.SubtotalTax.StringFixed(2) != "19.00" {
		t.Fatalf("expected DE fallback 19%%, got %s", totals.SubtotalTax)
	}
}

func TestCustomerRateOverridesEverything(t *testing.T) {
	t.Parallel()

	calc := newCalc(t, exclusiveWithRate("10"))
	item := testItem(t, "p-1", "100.00", 1)

	totals := calc.Calculate(Input{Items: []cart.Item{item}, CustomerTaxRate: decPtr(t, "5")})

	if totals.SubtotalTax.StringFixed(2) != "5.00" {
		t.Fatalf("customer rate should win, got %s", totals.SubtotalTax)
	}
}
