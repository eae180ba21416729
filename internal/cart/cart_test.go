package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKeyDeterministic(t *testing.T) {
	t.Parallel()

	a := ItemKey("prod-1", "var-2", map[string]string{"size": "m", "color": "blue"})
	b := ItemKey("prod-1", "var-2", map[string]string{"color": "blue", "size": "m"})
	assert.Equal(t, a, b, "attribute order must not change the key")

	assert.NotEqual(t, a, ItemKey("prod-1", "var-3", map[string]string{"size": "m", "color": "blue"}))
	assert.NotEqual(t, a, ItemKey("prod-2", "var-2", map[string]string{"size": "m", "color": "blue"}))
	assert.NotEqual(t, a, ItemKey("prod-1", "var-2", map[string]string{"size": "l", "color": "blue"}))
	assert.NotEqual(t, a, ItemKey("prod-1", "var-2", nil))
}

func TestItemKeyAttributeBoundaries(t *testing.T) {
	t.Parallel()

	// The separator keeps key/value pairs from bleeding into each other.
	a := ItemKey("p", "", map[string]string{"ab": "c"})
	b := ItemKey("p", "", map[string]string{"a": "bc"})
	assert.NotEqual(t, a, b)
}

func TestCartFindAndRemove(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := New("sess", now)
	require.True(t, c.IsEmpty())
	require.Equal(t, -1, c.FindItem("missing"))

	for _, id := range []string{"p1", "p2", "p3"} {
		item := Item{Key: ItemKey(id, "", nil), ProductID: id, Quantity: 2, Price: decimal.NewFromInt(5)}
		item.Recalculate()
		c.Items = append(c.Items, item)
	}
	require.Equal(t, 6, c.ItemCount())

	idx := c.FindItem(ItemKey("p2", "", nil))
	require.Equal(t, 1, idx)
	c.RemoveItemAt(idx)

	assert.Equal(t, -1, c.FindItem(ItemKey("p2", "", nil)))
	assert.Equal(t, []string{"p1", "p3"}, []string{c.Items[0].ProductID, c.Items[1].ProductID})
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	sale := decimal.NewFromFloat(7.5)
	stock := 4
	c := New("sess", time.Now())
	c.Items = append(c.Items, Item{
		Key:           ItemKey("p1", "", map[string]string{"size": "m"}),
		ProductID:     "p1",
		Quantity:      1,
		Price:         sale,
		SalePrice:     &sale,
		StockQuantity: &stock,
		Attributes:    map[string]string{"size": "m"},
	})
	c.Coupons = append(c.Coupons, AppliedCoupon{Code: "TEN"})

	clone := c.Clone()
	clone.Items[0].Quantity = 99
	clone.Items[0].Attributes["size"] = "xl"
	*clone.Items[0].StockQuantity = 0
	clone.Coupons[0].Code = "OTHER"

	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, "m", c.Items[0].Attributes["size"])
	assert.Equal(t, 4, *c.Items[0].StockQuantity)
	assert.Equal(t, "TEN", c.Coupons[0].Code)
}

func TestRecalculateLineTotal(t *testing.T) {
	t.Parallel()

	item := Item{Price: decimal.NewFromFloat(3.33), Quantity: 3}
	item.Recalculate()
	assert.True(t, item.TotalPrice.Equal(decimal.NewFromFloat(9.99)), "got %s", item.TotalPrice)
}

func TestTouchAdvancesUpdatedAt(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c := New("sess", start)
	later := start.Add(time.Minute)
	c.Touch(later)
	assert.Equal(t, later, c.UpdatedAt)
	assert.Equal(t, start, c.CreatedAt)
}
