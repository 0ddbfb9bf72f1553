package trade

import (
	"encoding/json"
	"testing"

	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreateOrderRequest(t *testing.T) {
	lines := []cart.Line{
		{ProductID: 1, Name: "Phone", Price: decimal.NewFromInt(100), Quantity: 2},
		{ProductID: 3, Name: "Case", Price: decimal.RequireFromString("9.50"), Quantity: 1},
	}

	req := NewCreateOrderRequest(42, lines)

	assert.Equal(t, int64(42), req.UserID)
	require.Len(t, req.Items, 2)
	assert.Equal(t, int64(1), req.Items[0].ProductID)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(100).Equal(req.Items[0].Price))
	assert.Equal(t, int64(3), req.Items[1].ProductID)
}

func TestStockDecrements(t *testing.T) {
	got := StockDecrements([]cart.Line{{ProductID: 1, Quantity: 2}, {ProductID: 5, Quantity: 1}})
	assert.Equal(t, []StockDecrement{{ProductID: 1, Quantity: 2}, {ProductID: 5, Quantity: 1}}, got)
}

func TestOrder_Totals(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(100)},
		{ProductID: 2, Quantity: 3, Price: decimal.RequireFromString("0.5")},
	}}

	assert.Equal(t, 5, o.ItemCount())
	assert.True(t, decimal.RequireFromString("201.5").Equal(o.ItemsTotal()))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":1,"orderDate":"2024-05-01T10:00:00Z"}`), &o))
	assert.Equal(t, Timestamp("2024-05-01T10:00:00Z"), o.OrderDate)

	require.NoError(t, json.Unmarshal([]byte(`{"orderId":1,"orderDate":1714557600.5}`), &o))
	assert.Equal(t, Timestamp("1714557600.5"), o.OrderDate)
}
