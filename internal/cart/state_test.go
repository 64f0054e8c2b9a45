package cart

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, price string, qty, stock int) Item {
	return Item{
		ID:       id,
		Name:     "Part " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		Stock:    stock,
	}
}

func TestAddToCartAppendsAndMerges(t *testing.T) {
	s := Empty()

	require.True(t, s.AddToCart(item("a", "10.50", 2, 5)))
	require.True(t, s.AddToCart(item("b", "3", 1, 1)))
	require.True(t, s.AddToCart(item("a", "11.00", 1, 5)))

	require.Len(t, s.Items, 2)
	line, ok := s.Line("a")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, line.Price.Equal(decimal.RequireFromString("11")), "price refreshed from incoming item")
	assert.True(t, line.TotalItemPrice.Equal(decimal.RequireFromString("33")))
	assert.Equal(t, 4, s.TotalQuantity)
	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("36")))
	assert.True(t, s.Consistent())
}

func TestAddToCartRejectsInvalidQuantities(t *testing.T) {
	s := Empty()
	require.True(t, s.AddToCart(item("a", "5", 2, 3)))
	before := s.Clone()

	cases := []Item{
		item("a", "5", 2, 3),  // merged quantity exceeds stock
		item("b", "5", 0, 3),  // zero
		item("c", "5", -1, 3), // negative
		item("d", "5", 4, 3),  // above stock
		item("", "5", 1, 3),   // missing id
		item("e", "-1", 1, 3), // negative price
	}
	for _, c := range cases {
		assert.False(t, s.AddToCart(c), "add %+v", c)
	}
	assert.True(t, before.Equal(s), "cart should be unchanged")
}

func TestUpdateQuantity(t *testing.T) {
	s := Empty()
	require.True(t, s.AddToCart(item("a", "2.25", 1, 4)))

	assert.False(t, s.UpdateQuantity("missing", 2))
	assert.False(t, s.UpdateQuantity("a", 0))
	assert.False(t, s.UpdateQuantity("a", 5))
	assert.False(t, s.UpdateQuantity("a", 1))

	require.True(t, s.UpdateQuantity("a", 4))
	assert.Equal(t, 4, s.TotalQuantity)
	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("9")))
	assert.True(t, s.Consistent())
}

func TestRemoveAndEmpty(t *testing.T) {
	s := Empty()
	require.True(t, s.AddToCart(item("a", "1", 1, 1)))
	require.True(t, s.AddToCart(item("b", "2", 2, 2)))

	assert.False(t, s.RemoveFromCart("zzz"))
	require.True(t, s.RemoveFromCart("a"))
	assert.Equal(t, 2, s.TotalQuantity)
	assert.True(t, s.TotalPrice.Equal(decimal.NewFromInt(4)))

	require.True(t, s.EmptyCart())
	assert.Empty(t, s.Items)
	assert.Equal(t, 0, s.TotalQuantity)
	assert.True(t, s.TotalPrice.IsZero())
	assert.False(t, s.EmptyCart())
}

func TestInvariantsHoldAcrossSequence(t *testing.T) {
	s := Empty()
	ops := []func(){
		func() { s.AddToCart(item("a", "4.99", 2, 10)) },
		func() { s.AddToCart(item("b", "0.01", 7, 7)) },
		func() { s.UpdateQuantity("a", 9) },
		func() { s.AddToCart(item("a", "4.99", 5, 10)) },
		func() { s.RemoveFromCart("b") },
		func() { s.AddToCart(item("c", "120", 1, 2)) },
		func() { s.UpdateQuantity("c", 2) },
	}
	for i, op := range ops {
		op()
		require.True(t, s.Consistent(), "after op %d: %+v", i, s)
	}
	assert.Equal(t, 11, s.TotalQuantity)
	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("284.91")))
}

func TestSanitizeDropsInvalidLines(t *testing.T) {
	s := State{
		Items: []Item{
			{ID: "ok", Name: "ok", Price: decimal.NewFromInt(3), Quantity: 2, Stock: 2},
			{ID: "zero", Price: decimal.NewFromInt(1), Quantity: 0, Stock: 5},
			{ID: "over", Price: decimal.NewFromInt(1), Quantity: 6, Stock: 5},
			{ID: "", Price: decimal.NewFromInt(1), Quantity: 1, Stock: 5},
			{ID: "neg", Price: decimal.NewFromInt(-1), Quantity: 1, Stock: 5},
			{ID: "ok", Name: "dup", Price: decimal.NewFromInt(3), Quantity: 1, Stock: 2},
		},
		TotalQuantity: 99,
		TotalPrice:    decimal.NewFromInt(99),
	}

	require.True(t, s.Sanitize())
	require.Len(t, s.Items, 1)
	assert.Equal(t, "ok", s.Items[0].Name)
	assert.Equal(t, 2, s.TotalQuantity)
	assert.True(t, s.TotalPrice.Equal(decimal.NewFromInt(6)))
	assert.False(t, s.Sanitize(), "second pass is a no-op")
}

func TestRefreshCopiesCatalogFields(t *testing.T) {
	s := Empty()
	require.True(t, s.AddToCart(item("a", "4", 2, 5)))

	assert.False(t, s.Refresh(item("missing", "1", 0, 1)))
	assert.False(t, s.Refresh(item("a", "4", 0, 5)), "unchanged catalog data")

	require.True(t, s.Refresh(item("a", "6", 0, 1)))
	line, _ := s.Line("a")
	assert.Equal(t, 2, line.Quantity, "quantity is untouched")
	assert.Equal(t, 1, line.Stock)
	assert.True(t, s.TotalPrice.Equal(decimal.NewFromInt(12)))
}

func TestStateJSONShape(t *testing.T) {
	s := Empty()
	require.True(t, s.AddToCart(Item{ID: "p1", Name: "Brake pad", Image: "https://img/p1.png", Price: decimal.RequireFromString("12.5"), Quantity: 2, Stock: 3}))

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "cartItems")
	assert.Equal(t, float64(2), generic["totalQuantity"])
	assert.Equal(t, "25", fmt.Sprint(generic["totalPrice"]))

	line := generic["cartItems"].([]any)[0].(map[string]any)
	for _, key := range []string{"_id", "name", "price", "quantity", "stock", "totalItemPrice", "image"} {
		assert.Contains(t, line, key)
	}

	var back State
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(s))
}
