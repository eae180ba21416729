package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/internal/catalog"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

type stubCatalog struct {
	products map[string]*catalog.Product
	coupons  map[string]*catalog.Coupon
	fetchErr error
}

func (s *stubCatalog) FetchProduct(ctx context.Context, id string) (*catalog.Product, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubCatalog) FetchCoupon(ctx context.Context, code string) (*catalog.Coupon, error) {
	if c, ok := s.coupons[code]; ok {
		return c, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return d
}

func intPtr(v int) *int { return &v }

func decPtr(t *testing.T, raw string) *decimal.Decimal {
	t.Helper()
	d := dec(t, raw)
	return &d
}

func taxOff() config.TaxConfig {
	return config.TaxConfig{Enabled: false, RoundAtSubtotal: true, Country: "US"}
}

func limits() config.LimitsConfig {
	return config.LimitsConfig{MaxItems: 100, MaxQuantityPerItem: 999}
}

func newEngine(t *testing.T, cat *stubCatalog) *Engine {
	t.Helper()
	calc, err := totals.NewCalculator(taxOff())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	engine, err := NewEngine(cat, cat, calc, limits(), nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return engine
}

func inStockProduct(t *testing.T, id, price string) *catalog.Product {
	t.Helper()
	p := dec(t, price)
	return &catalog.Product{
		ID:           id,
		Name:         "product " + id,
		Status:       enums.ProductStatusPublish,
		Price:        p,
		RegularPrice: p,
		StockStatus:  enums.StockStatusInStock,
	}
}

func cartItem(t *testing.T, productID, price string, qty int) cart.Item {
	t.Helper()
	p := dec(t, price)
	item := cart.Item{
		Key:          cart.ItemKey(productID, "", nil),
		ProductID:    productID,
		Quantity:     qty,
		Price:        p,
		RegularPrice: p,
		StockStatus:  enums.StockStatusInStock,
	}
	item.Recalculate()
	return item
}

func cartWith(t *testing.T, items ...cart.Item) *cart.Cart {
	t.Helper()
	c := cart.New("sess-1", time.Now())
	c.Items = items
	calc, err := totals.NewCalculator(taxOff())
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	c.Totals = calc.Calculate(totals.Input{Items: c.Items, Coupons: c.Coupons})
	return c
}

func TestValidateEmptyCart(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, &stubCatalog{})
	result := engine.Validate(context.Background(), cartWith(t))

	if !result.IsValid {
		t.Fatal("an empty cart is valid")
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != enums.ValidationEmptyCart {
		t.Fatalf("expected one EMPTY_CART warning, got %+v", result.Warnings)
	}
}

func TestValidateIndependentItems(t *testing.T) {
	t.Parallel()

	good := inStockProduct(t, "p-good", "10.00")
	bad := inStockProduct(t, "p-bad", "20.00")
	bad.StockStatus = enums.StockStatusOutOfStock
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-good": good, "p-bad": bad}}
	engine := newEngine(t, cat)

	c := cartWith(t,
		cartItem(t, "p-bad", "20.00", 1),
		cartItem(t, "p-good", "10.00", 1),
	)
	result := engine.Validate(context.Background(), c)

	if result.IsValid {
		t.Fatal("expected invalid cart")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %+v", result.Errors)
	}
	if result.Errors[0].Code != enums.ValidationOutOfStock {
		t.Fatalf("unexpected error code: %s", result.Errors[0].Code)
	}
	if result.Errors[0].ItemKey != cart.ItemKey("p-bad", "", nil) {
		t.Fatal("error should point at the bad item")
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("the valid item must produce no warnings, got %+v", result.Warnings)
	}
}

func TestValidateStockStates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		available *int
		qty       int
		wantCode  enums.ValidationCode
		isError   bool
	}{
		{"insufficient", intPtr(3), 5, enums.ValidationInsufficientStock, true},
		{"exactly zero", intPtr(0), 2, enums.ValidationOutOfStock, true},
		{"low stock", intPtr(12), 10, enums.ValidationLowStock, false},
		{"plentiful", intPtr(1000), 10, "", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			product := inStockProduct(t, "p-1", "10.00")
			product.StockQuantity = tc.available
			cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
			engine := newEngine(t, cat)

			result := engine.Validate(context.Background(), cartWith(t, cartItem(t, "p-1", "10.00", tc.qty)))

			if tc.wantCode == "" {
				if len(result.Errors) != 0 || len(result.Warnings) != 0 {
					t.Fatalf("expected clean result, got %+v / %+v", result.Errors, result.Warnings)
				}
				return
			}
			issues := result.Warnings
			if tc.isError {
				issues = result.Errors
			}
			if len(issues) != 1 || issues[0].Code != tc.wantCode {
				t.Fatalf("expected %s, got errors=%+v warnings=%+v", tc.wantCode, result.Errors, result.Warnings)
			}
		})
	}
}

func TestValidateBackorders(t *testing.T) {
	t.Parallel()

	product := inStockProduct(t, "p-1", "10.00")
	product.StockStatus = enums.StockStatusOnBackorder
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
	engine := newEngine(t, cat)
	c := cartWith(t, cartItem(t, "p-1", "10.00", 1))

	result := engine.Validate(context.Background(), c)
	if len(result.Errors) != 1 || result.Errors[0].Code != enums.ValidationBackorder {
		t.Fatalf("backorders disabled should error, got %+v", result.Errors)
	}

	product.Backorders = true
	result = engine.Validate(context.Background(), c)
	if len(result.Errors) != 0 {
		t.Fatalf("backorders allowed should not error, got %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != enums.ValidationBackorder {
		t.Fatalf("expected BACKORDER warning, got %+v", result.Warnings)
	}
}

func TestValidateQuantityStep(t *testing.T) {
	t.Parallel()

	product := inStockProduct(t, "p-1", "10.00")
	product.QuantityStep = intPtr(6)
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
	engine := newEngine(t, cat)

	result := engine.Validate(context.Background(), cartWith(t, cartItem(t, "p-1", "10.00", 4)))

	if len(result.Errors) != 1 || result.Errors[0].Code != enums.ValidationInvalidQuantity {
		t.Fatalf("expected INVALID_QUANTITY for misaligned step, got %+v", result.Errors)
	}
}

func TestValidatePriceDriftWarns(t *testing.T) {
	t.Parallel()

	product := inStockProduct(t, "p-1", "12.00")
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
	engine := newEngine(t, cat)

	// Snapshot captured at 10.00, catalog now says 12.00.
	c := cartWith(t, cartItem(t, "p-1", "10.00", 1))
	result := engine.Validate(context.Background(), c)

	if !result.IsValid {
		t.Fatalf("price drift must not block, got %+v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Code == enums.ValidationPriceChanged {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected PRICE_CHANGED warning, got %+v", result.Warnings)
	}
}

func TestValidatePriceWithinToleranceIsQuiet(t *testing.T) {
	t.Parallel()

	product := inStockProduct(t, "p-1", "10.01")
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
	engine := newEngine(t, cat)

	result := engine.Validate(context.Background(), cartWith(t, cartItem(t, "p-1", "10.00", 1)))

	for _, w := range result.Warnings {
		if w.Code == enums.ValidationPriceChanged {
			t.Fatalf("one-cent drift is within tolerance: %+v", w)
		}
	}
}

func TestValidateVariationRequired(t *testing.T) {
	t.Parallel()

	product := inStockProduct(t, "p-1", "10.00")
	product.HasVariations = true
	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": product}}
	engine := newEngine(t, cat)

	result := engine.Validate(context.Background(), cartWith(t, cartItem(t, "p-1", "10.00", 1)))

	if len(result.Errors) != 1 || result.Errors[0].Code != enums.ValidationVariationNotFound {
		t.Fatalf("expected VARIATION_NOT_FOUND, got %+v", result.Errors)
	}
}

func TestValidateFetchFailureDegradesToWarning(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{fetchErr: errors.New("connection reset")}
	engine := newEngine(t, cat)

	c := cartWith(t,
		cartItem(t, "p-1", "10.00", 1),
		cartItem(t, "p-2", "5.00", 2),
	)
	result := engine.Validate(context.Background(), c)

	if !result.IsValid {
		t.Fatalf("fetch failures must not block, got %+v", result.Errors)
	}
	warned := 0
	for _, w := range result.Warnings {
		if w.Code == enums.ValidationCheckFailed {
			warned++
		}
	}
	if warned != 2 {
		t.Fatalf("expected a warning per unreachable item, got %+v", result.Warnings)
	}
}

func TestValidateCouponChecks(t *testing.T) {
	t.Parallel()

	expired := time.Now().Add(-time.Hour)
	cat := &stubCatalog{
		products: map[string]*catalog.Product{"p-1": inStockProduct(t, "p-1", "20.00")},
		coupons: map[string]*catalog.Coupon{
			"OLD": {
				Code:         "OLD",
				DiscountType: enums.DiscountTypePercent,
				Amount:       dec(t, "10"),
				ExpiryDate:   &expired,
			},
			"BIGSPEND": {
				Code:          "BIGSPEND",
				DiscountType:  enums.DiscountTypeFixedCart,
				Amount:        dec(t, "5"),
				MinimumAmount: decPtr(t, "50"),
			},
			"SOLO": {
				Code:          "SOLO",
				DiscountType:  enums.DiscountTypePercent,
				Amount:        dec(t, "5"),
				IndividualUse: true,
			},
		},
	}
	engine := newEngine(t, cat)

	c := cartWith(t, cartItem(t, "p-1", "20.00", 1))
	c.Coupons = []cart.AppliedCoupon{
		{Code: "OLD", DiscountType: enums.DiscountTypePercent, Amount: dec(t, "10")},
		{Code: "BIGSPEND", DiscountType: enums.DiscountTypeFixedCart, Amount: dec(t, "5")},
		{Code: "SOLO", DiscountType: enums.DiscountTypePercent, Amount: dec(t, "5")},
	}

	result := engine.Validate(context.Background(), c)

	codes := map[enums.ValidationCode]bool{}
	for _, issue := range result.Errors {
		codes[issue.Code] = true
	}
	for _, want := range []enums.ValidationCode{
		enums.ValidationCouponExpired,
		enums.ValidationCouponMinimum,
		enums.ValidationCouponIndividualUse,
	} {
		if !codes[want] {
			t.Fatalf("missing %s in %+v", want, result.Errors)
		}
	}
}

func TestValidateCouponUsageLimit(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{
		products: map[string]*catalog.Product{"p-1": inStockProduct(t, "p-1", "20.00")},
		coupons: map[string]*catalog.Coupon{
			"USED": {
				Code:         "USED",
				DiscountType: enums.DiscountTypeFixedCart,
				Amount:       dec(t, "5"),
				UsageLimit:   intPtr(3),
				UsageCount:   3,
			},
		},
	}
	engine := newEngine(t, cat)

	c := cartWith(t, cartItem(t, "p-1", "20.00", 1))
	c.Coupons = []cart.AppliedCoupon{{Code: "USED", DiscountType: enums.DiscountTypeFixedCart, Amount: dec(t, "5")}}

	result := engine.Validate(context.Background(), c)

	if len(result.Errors) != 1 || result.Errors[0].Code != enums.ValidationCouponUsageLimit {
		t.Fatalf("expected COUPON_USAGE_LIMIT, got %+v", result.Errors)
	}
}

func TestValidateTotalsMismatchWarns(t *testing.T) {
	t.Parallel()

	cat := &stubCatalog{products: map[string]*catalog.Product{"p-1": inStockProduct(t, "p-1", "10.00")}}
	engine := newEngine(t, cat)

	c := cartWith(t, cartItem(t, "p-1", "10.00", 1))
	c.Totals.Total = dec(t, "99.99") // hand-patched, which the model forbids

	result := engine.Validate(context.Background(), c)

	found := false
	for _, w := range result.Warnings {
		if w.Code == enums.ValidationTotalsMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TOTALS_MISMATCH warning, got %+v", result.Warnings)
	}
	if !result.IsValid {
		t.Fatal("a totals mismatch warns, it does not block")
	}
}
