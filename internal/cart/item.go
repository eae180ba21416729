package cart

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/pkg/enums"
)

// Item is one cart line. Its Key is a deterministic content hash: two
// add requests that resolve to the same key are the same line and are
// merged, never duplicated.
type Item struct {
	Key         string            `json:"key"`
	ProductID   string            `json:"product_id"`
	VariationID string            `json:"variation_id,omitempty"`
	Name        string            `json:"name"`
	Quantity    int               `json:"quantity"`
	Attributes  map[string]string `json:"attributes,omitempty"`

	Price        decimal.Decimal  `json:"price"`
	RegularPrice decimal.Decimal  `json:"regular_price"`
	SalePrice    *decimal.Decimal `json:"sale_price,omitempty"`
	TotalPrice   decimal.Decimal  `json:"total_price"`

	// Catalog snapshot captured at add time; validation later compares
	// it against live truth to detect drift.
	StockQuantity *int              `json:"stock_quantity,omitempty"`
	StockStatus   enums.StockStatus `json:"stock_status"`
	Backorders    bool              `json:"backorders_allowed"`
	MinQuantity   *int              `json:"min_quantity,omitempty"`
	MaxQuantity   *int              `json:"max_quantity,omitempty"`
	QuantityStep  *int              `json:"quantity_step,omitempty"`
}

// ItemKey derives the deterministic line identity from the product, its
// variation and the sorted selected attributes.
func ItemKey(productID, variationID string, attributes map[string]string) string {
	h := md5.New()
	io.WriteString(h, productID)
	io.WriteString(h, "|")
	io.WriteString(h, variationID)

	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "|%s=%s", name, attributes[name])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Recalculate refreshes the line total from price and quantity.
func (i *Item) Recalculate() {
	i.TotalPrice = i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Attributes != nil {
		out.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			out.Attributes[k] = v
		}
	}
	out.SalePrice = cloneDecimalPtr(i.SalePrice)
	out.StockQuantity = cloneIntPtr(i.StockQuantity)
	out.MinQuantity = cloneIntPtr(i.MinQuantity)
	out.MaxQuantity = cloneIntPtr(i.MaxQuantity)
	out.QuantityStep = cloneIntPtr(i.QuantityStep)
	return out
}

func cloneIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}

func cloneDecimalPtr(src *decimal.Decimal) *decimal.Decimal {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
