package cart

import (
	"testing"

	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int64, price int64, stock int) catalog.Product {
	return catalog.Product{
		ID:               id,
		Name:             "Product",
		Price:            decimal.NewFromInt(price),
		StockQuantity:    stock,
		ProductAvailable: true,
	}
}

func TestCart_Add(t *testing.T) {
	t.Run("adding the same product twice yields one line with quantity 2", func(t *testing.T) {
		c := New(nil)
		p := product(1, 100, 10)

		c.Add(p)
		c.Add(p)

		require.Equal(t, 1, c.Len())
		line, ok := c.Line(1)
		require.True(t, ok)
		assert.Equal(t, 2, line.Quantity)
	})

	t.Run("keeps insertion order", func(t *testing.T) {
		c := New(nil)
		c.Add(product(2, 10, 1))
		c.Add(product(1, 10, 1))

		lines := c.Lines()
		assert.Equal(t, int64(2), lines[0].ProductID)
		assert.Equal(t, int64(1), lines[1].ProductID)
	})

	t.Run("does not bound quantity by stock", func(t *testing.T) {
		c := New(nil)
		p := product(1, 10, 1)
		c.Add(p)
		c.Add(p)

		line, _ := c.Line(1)
		assert.Equal(t, 2, line.Quantity)
		assert.True(t, line.ExceedsStock())
	})
}

func TestCart_Remove(t *testing.T) {
	c := New(nil)
	c.Add(product(1, 10, 5))

	t.Run("absent product is a no-op", func(t *testing.T) {
		before := c.Lines()
		assert.False(t, c.Remove(99))
		assert.Equal(t, before, c.Lines())
	})

	t.Run("removes present product", func(t *testing.T) {
		assert.True(t, c.Remove(1))
		assert.True(t, c.IsEmpty())
	})
}

func TestCart_SetQuantity(t *testing.T) {
	c := New(nil)
	c.Add(product(1, 10, 5))

	assert.True(t, c.SetQuantity(1, 4))
	line, _ := c.Line(1)
	assert.Equal(t, 4, line.Quantity)

	assert.False(t, c.SetQuantity(2, 3))
	assert.Equal(t, 1, c.Len())
}

func TestNew_NormalisesStoredLines(t *testing.T) {
	c := New([]Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 0},
		{ProductID: 1, Quantity: 2},
	})

	require.Equal(t, 1, c.Len())
	line, _ := c.Line(1)
	assert.Equal(t, 3, line.Quantity)
}

func TestTotal(t *testing.T) {
	c := New(nil)
	p := product(1, 100, 10)
	c.Add(p)
	c.Add(p)
	c.Add(catalog.Product{ID: 2, Price: decimal.RequireFromString("19.99"), StockQuantity: 3})

	assert.True(t, decimal.RequireFromString("219.99").Equal(c.Total()))
}

func TestStockViolations(t *testing.T) {
	lines := []Line{
		{ProductID: 7, Name: "Headphones", Quantity: 5, StockQuantity: 10},
		{ProductID: 8, Name: "Laptop", Quantity: 1, StockQuantity: 1},
	}

	t.Run("uses the most recent stock over the snapshot", func(t *testing.T) {
		v := StockViolations(lines, map[int64]int{7: 3})
		require.Len(t, v, 1)
		assert.Equal(t, StockViolation{ProductID: 7, Name: "Headphones", Requested: 5, Available: 3}, v[0])
	})

	t.Run("falls back to the snapshot", func(t *testing.T) {
		assert.Empty(t, StockViolations(lines, nil))
	})
}

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		stock    int
		want     int
	}{
		{"below one", 0, 5, 1},
		{"within range", 3, 5, 3},
		{"above stock", 9, 5, 5},
		{"no stock", 2, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampQuantity(tt.quantity, tt.stock))
		})
	}
}

func TestCart_RefreshSnapshots(t *testing.T) {
	c := New(nil)
	c.Add(product(1, 100, 10))
	c.Add(product(2, 50, 10))

	assert.True(t, c.RefreshSnapshots(map[int64]catalog.Product{1: product(1, 120, 3)}))
	assert.False(t, c.RefreshSnapshots(map[int64]catalog.Product{1: product(1, 120, 3)}))

	l1, _ := c.Line(1)
	l2, _ := c.Line(2)
	assert.True(t, decimal.NewFromInt(120).Equal(l1.Price))
	assert.Equal(t, 3, l1.StockQuantity)
	assert.Equal(t, 10, l2.StockQuantity)
}
