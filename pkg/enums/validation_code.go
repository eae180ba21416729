package enums

// ValidationCode identifies one class of issue reported by cart validation.
type ValidationCode string

const (
	// Item-level errors.
	ValidationProductNotFound   ValidationCode = "PRODUCT_NOT_FOUND"
	ValidationOutOfStock        ValidationCode = "OUT_OF_STOCK"
	ValidationInsufficientStock ValidationCode = "INSUFFICIENT_STOCK"
	ValidationInvalidQuantity   ValidationCode = "INVALID_QUANTITY"
	ValidationVariationNotFound ValidationCode = "VARIATION_NOT_FOUND"

	// Item-level warnings. BACKORDER doubles as an error when backorders
	// are disabled for the product.
	ValidationLowStock     ValidationCode = "LOW_STOCK"
	ValidationBackorder    ValidationCode = "BACKORDER"
	ValidationPriceChanged ValidationCode = "PRICE_CHANGED"
	ValidationCheckFailed  ValidationCode = "CHECK_FAILED"

	// Cart-level.
	ValidationMaxItemsExceeded ValidationCode = "MAX_ITEMS_EXCEEDED"
	ValidationQuantityHigh     ValidationCode = "CART_QUANTITY_HIGH"
	ValidationEmptyCart        ValidationCode = "EMPTY_CART"
	ValidationTotalsMismatch   ValidationCode = "TOTALS_MISMATCH"

	// Coupon-level.
	ValidationCouponExpired       ValidationCode = "COUPON_EXPIRED"
	ValidationCouponUsageLimit    ValidationCode = "COUPON_USAGE_LIMIT"
	ValidationCouponMinimum       ValidationCode = "COUPON_MINIMUM_NOT_MET"
	ValidationCouponMaximum       ValidationCode = "COUPON_MAXIMUM_EXCEEDED"
	ValidationCouponIndividualUse ValidationCode = "COUPON_INDIVIDUAL_USE"
	ValidationCouponNotFound      ValidationCode = "COUPON_NOT_FOUND"
)

// String implements fmt.Stringer.
func (v ValidationCode) String() string {
	return string(v)
}
