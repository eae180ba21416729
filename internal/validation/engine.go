// Package validation checks a cart against live catalog truth. Errors
// block checkout; warnings inform only. Checks are additive: one bad
// item never suppresses or aborts the checks for the rest of the cart.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/internal/catalog"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
	"github.com/storefront-kit/cartengine/pkg/logger"
)

// priceTolerance is the drift below which current and snapshot prices
// are considered equal (one cent).
var priceTolerance = decimal.New(1, -2)

// lowStockUnits is the fixed floor of the low-stock headroom window.
const lowStockUnits = 5

// Issue is one reported validation finding.
type Issue struct {
	Code    enums.ValidationCode `json:"code"`
	ItemKey string               `json:"item_key,omitempty"`
	Coupon  string               `json:"coupon,omitempty"`
	Message string               `json:"message"`
}

// Result is the outcome of validating one cart snapshot.
type Result struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Result) addError(code enums.ValidationCode, itemKey, couponCode, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, ItemKey: itemKey, Coupon: couponCode, Message: message})
}

func (r *Result) addWarning(code enums.ValidationCode, itemKey, couponCode, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, ItemKey: itemKey, Coupon: couponCode, Message: message})
}

// Engine validates carts against the catalog collaborators.
type Engine struct {
	products catalog.ProductReader
	coupons  catalog.CouponReader
	calc     *totals.Calculator
	limits   config.LimitsConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewEngine builds a validation engine over the provided collaborators.
func NewEngine(products catalog.ProductReader, coupons catalog.CouponReader, calc *totals.Calculator, limits config.LimitsConfig, logg *logger.Logger) (*Engine, error) {
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon reader required")
	}
	if calc == nil {
		return nil, fmt.Errorf("totals calculator required")
	}
	return &Engine{
		products: products,
		coupons:  coupons,
		calc:     calc,
		limits:   limits,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Validate runs every check and reports the aggregate result. The cart
// itself is never mutated.
func (e *Engine) Validate(ctx context.Context, c *cart.Cart) *Result {
	result := &Result{}

	for i := range c.Items {
		e.checkItem(ctx, &c.Items[i], result)
	}

	e.checkCartLevel(c, result)

	for i := range c.Coupons {
		e.checkCoupon(ctx, c, &c.Coupons[i], result)
	}

	e.checkTotalsIntegrity(c, result)

	result.IsValid = len(result.Errors) == 0
	return result
}

func (e *Engine) checkItem(ctx context.Context, item *cart.Item, result *Result) {
	product, err := e.products.FetchProduct(ctx, item.ProductID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			result.addError(enums.ValidationProductNotFound, item.Key, "",
				fmt.Sprintf("product %s is no longer available", item.ProductID))
			return
		}
		// A fetch failure degrades to a warning so the rest of the cart
		// still gets validated.
		if e.logg != nil {
			e.logg.Warn(e.logg.WithField(ctx, "product_id", item.ProductID), "validation.fetch_failed")
		}
		result.addWarning(enums.ValidationCheckFailed, item.Key, "",
			fmt.Sprintf("could not verify product %s: %v", item.ProductID, err))
		return
	}

	if !product.Status.Purchasable() {
		result.addError(enums.ValidationProductNotFound, item.Key, "",
			fmt.Sprintf("product %s is not published", item.ProductID))
		return
	}

	e.checkStock(item, product, result)
	e.checkQuantityLimits(item, product, result)
	e.checkPriceDrift(item, product, result)
	e.checkVariation(item, product, result)
}

func (e *Engine) checkStock(item *cart.Item, product *catalog.Product, result *Result) {
	switch product.StockStatus {
	case enums.StockStatusOutOfStock:
		result.addError(enums.ValidationOutOfStock, item.Key, "",
			fmt.Sprintf("%s is out of stock", product.Name))
		return
	case enums.StockStatusOnBackorder:
		if !product.Backorders {
			result.addError(enums.ValidationBackorder, item.Key, "",
				fmt.Sprintf("%s is on backorder and backorders are disabled", product.Name))
		} else {
			result.addWarning(enums.ValidationBackorder, item.Key, "",
				fmt.Sprintf("%s will be backordered", product.Name))
		}
		return
	}

	if !product.ManagedStock() {
		return
	}

	available := *product.StockQuantity
	switch {
	case available == 0:
		result.addError(enums.ValidationOutOfStock, item.Key, "",
			fmt.Sprintf("%s is out of stock", product.Name))
	case available < item.Quantity:
		result.addError(enums.ValidationInsufficientStock, item.Key, "",
			fmt.Sprintf("only %d of %s available, %d requested", available, product.Name, item.Quantity))
	case available-item.Quantity <= lowStockHeadroom(item.Quantity):
		result.addWarning(enums.ValidationLowStock, item.Key, "",
			fmt.Sprintf("only %d of %s left", available, product.Name))
	}
}

// lowStockHeadroom is 10% of the requested quantity or five units,
// whichever is larger.
func lowStockHeadroom(requested int) int {
	tenth := requested / 10
	if tenth > lowStockUnits {
		return tenth
	}
	return lowStockUnits
}

func (e *Engine) checkQuantityLimits(item *cart.Item, product *catalog.Product, result *Result) {
	if product.MinQuantity != nil && item.Quantity < *product.MinQuantity {
		result.addError(enums.ValidationInvalidQuantity, item.Key, "",
			fmt.Sprintf("quantity %d is below the minimum of %d", item.Quantity, *product.MinQuantity))
	}
	if product.MaxQuantity != nil && item.Quantity > *product.MaxQuantity {
		result.addError(enums.ValidationInvalidQuantity, item.Key, "",
			fmt.Sprintf("quantity %d is above the maximum of %d", item.Quantity, *product.MaxQuantity))
	}
	if product.QuantityStep != nil && *product.QuantityStep > 1 && item.Quantity%*product.QuantityStep != 0 {
		result.addError(enums.ValidationInvalidQuantity, item.Key, "",
			fmt.Sprintf("quantity %d is not a multiple of %d", item.Quantity, *product.QuantityStep))
	}
	if e.limits.MaxQuantityPerItem > 0 && item.Quantity > e.limits.MaxQuantityPerItem {
		result.addError(enums.ValidationInvalidQuantity, item.Key, "",
			fmt.Sprintf("quantity %d exceeds the per-item cap of %d", item.Quantity, e.limits.MaxQuantityPerItem))
	}
}

func (e *Engine) checkPriceDrift(item *cart.Item, product *catalog.Product, result *Result) {
	drifted := item.RegularPrice.Sub(product.RegularPrice).Abs().GreaterThan(priceTolerance)
	if !drifted {
		currentSale := product.SalePrice
		snapshotSale := item.SalePrice
		switch {
		case currentSale == nil && snapshotSale == nil:
		case currentSale == nil || snapshotSale == nil:
			drifted = true
		default:
			drifted = currentSale.Sub(*snapshotSale).Abs().GreaterThan(priceTolerance)
		}
	}
	if drifted {
		result.addWarning(enums.ValidationPriceChanged, item.Key, "",
			fmt.Sprintf("price of %s changed from %s to %s", product.Name,
				item.Price.StringFixed(2), product.EffectivePrice().StringFixed(2)))
	}
}

func (e *Engine) checkVariation(item *cart.Item, product *catalog.Product, result *Result) {
	if product.HasVariations && item.VariationID == "" {
		result.addError(enums.ValidationVariationNotFound, item.Key, "",
			fmt.Sprintf("%s requires a variation selection", product.Name))
		return
	}
	for name, value := range item.Attributes {
		if value == "" {
			result.addError(enums.ValidationVariationNotFound, item.Key, "",
				fmt.Sprintf("attribute %q has no selected value", name))
			return
		}
	}
}

func (e *Engine) checkCartLevel(c *cart.Cart, result *Result) {
	if c.IsEmpty() {
		// An empty cart is valid, just not checkout-ready.
		result.addWarning(enums.ValidationEmptyCart, "", "", "cart is empty")
		return
	}
	if e.limits.MaxItems > 0 && len(c.Items) > e.limits.MaxItems {
		result.addError(enums.ValidationMaxItemsExceeded, "", "",
			fmt.Sprintf("cart has %d lines, maximum is %d", len(c.Items), e.limits.MaxItems))
	}
	if ceiling := e.limits.SoftQuantityCeiling(); ceiling > 0 && c.ItemCount() > ceiling {
		result.addWarning(enums.ValidationQuantityHigh, "", "",
			fmt.Sprintf("cart quantity %d is unusually high", c.ItemCount()))
	}
}

func (e *Engine) checkCoupon(ctx context.Context, c *cart.Cart, applied *cart.AppliedCoupon, result *Result) {
	coupon, err := e.coupons.FetchCoupon(ctx, applied.Code)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			result.addError(enums.ValidationCouponNotFound, "", applied.Code,
				fmt.Sprintf("coupon %s no longer exists", applied.Code))
			return
		}
		result.addWarning(enums.ValidationCheckFailed, "", applied.Code,
			fmt.Sprintf("could not verify coupon %s: %v", applied.Code, err))
		return
	}

	if coupon.Expired(e.now()) {
		result.addError(enums.ValidationCouponExpired, "", applied.Code,
			fmt.Sprintf("coupon %s has expired", applied.Code))
	}
	if coupon.UsageExhausted() {
		result.addError(enums.ValidationCouponUsageLimit, "", applied.Code,
			fmt.Sprintf("coupon %s has reached its usage limit", applied.Code))
	}

	subtotal := e.calc.Calculate(totals.Input{Items: c.Items}).Subtotal
	if coupon.MinimumAmount != nil && subtotal.LessThan(*coupon.MinimumAmount) {
		result.addError(enums.ValidationCouponMinimum, "", applied.Code,
			fmt.Sprintf("cart subtotal %s is below the coupon minimum %s",
				subtotal.StringFixed(2), coupon.MinimumAmount.StringFixed(2)))
	}
	if coupon.MaximumAmount != nil && subtotal.GreaterThan(*coupon.MaximumAmount) {
		// Soft: the coupon may still partially apply.
		result.addWarning(enums.ValidationCouponMaximum, "", applied.Code,
			fmt.Sprintf("cart subtotal %s exceeds the coupon maximum %s",
				subtotal.StringFixed(2), coupon.MaximumAmount.StringFixed(2)))
	}
	if coupon.IndividualUse && len(c.Coupons) > 1 {
		result.addError(enums.ValidationCouponIndividualUse, "", applied.Code,
			fmt.Sprintf("coupon %s cannot be combined with other coupons", applied.Code))
	}
}

// checkTotalsIntegrity recomputes totals and compares the grand total to
// the stored one within a one-cent tolerance. A mismatch signals the
// cart needs a totals refresh, not necessarily a data bug.
func (e *Engine) checkTotalsIntegrity(c *cart.Cart, result *Result) {
	recomputed := e.calc.Calculate(totals.Input{
		Items:           c.Items,
		Coupons:         c.Coupons,
		ShippingMethods: c.ShippingMethods,
		Fees:            c.Fees,
	})
	if recomputed.Total.Sub(c.Totals.Total).Abs().GreaterThan(priceTolerance) {
		result.addWarning(enums.ValidationTotalsMismatch, "", "",
			fmt.Sprintf("stored total %s differs from computed %s",
				c.Totals.Total.StringFixed(2), recomputed.Total.StringFixed(2)))
	}
}
