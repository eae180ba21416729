package cart

import "github.com/storefront-kit/cartengine/internal/service"

// AddItemRequest is the add-to-cart payload.
type AddItemRequest struct {
	ProductID   string            `json:"product_id" validate:"required"`
	VariationID string            `json:"variation_id,omitempty"`
	Quantity    int               `json:"quantity" validate:"required,min=1"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Replace     bool              `json:"replace,omitempty"`
}

// UpdateItemRequest changes a line's quantity. Zero removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// ApplyCouponRequest applies a coupon code to the cart.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

func toAddItemInput(payload AddItemRequest) service.AddItemInput {
	return service.AddItemInput{
		ProductID:   payload.ProductID,
		VariationID: payload.VariationID,
		Quantity:    payload.Quantity,
		Attributes:  payload.Attributes,
		Replace:     payload.Replace,
	}
}
