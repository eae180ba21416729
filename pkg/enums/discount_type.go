package enums

import "fmt"

// DiscountType describes how a coupon's amount is applied to the cart.
type DiscountType string

const (
	DiscountTypeFixedCart    DiscountType = "fixed_cart"
	DiscountTypePercent      DiscountType = "percent"
	DiscountTypeFixedProduct DiscountType = "fixed_product"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeFixedCart,
	DiscountTypePercent,
	DiscountTypeFixedProduct,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
