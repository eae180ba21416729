package enums

// StockStatus mirrors the catalog's availability state for a product.
type StockStatus string

const (
	StockStatusInStock     StockStatus = "instock"
	StockStatusOutOfStock  StockStatus = "outofstock"
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusInStock, StockStatusOutOfStock, StockStatusOnBackorder:
		return true
	}
	return false
}
