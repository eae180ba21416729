package enums

// ProductStatus is the catalog publish state of a product.
type ProductStatus string

const (
	ProductStatusPublish ProductStatus = "publish"
	ProductStatusDraft   ProductStatus = "draft"
	ProductStatusPending ProductStatus = "pending"
	ProductStatusPrivate ProductStatus = "private"
)

// Purchasable reports whether products in this state may be added to a cart.
func (p ProductStatus) Purchasable() bool {
	return p == ProductStatusPublish
}
