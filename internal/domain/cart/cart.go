// Package cart holds the client-owned shopping cart and its invariants.
package cart

import (
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// Line is one product entry in the cart. Price, name and stock are a snapshot
// taken when the product was added; the server stays authoritative.
type Line struct {
	ProductID     int64           `json:"id"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	Quantity      int             `json:"quantity"`
}

// Subtotal returns price × quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ExceedsStock reports whether the line asks for more than the last known stock
func (l Line) ExceedsStock() bool {
	return l.Quantity > l.StockQuantity
}

// Cart is an ordered collection of lines, unique by product ID
type Cart struct {
	lines []Line
}

// New returns a cart holding a copy of lines. Duplicate product IDs are merged
// by summing quantities and lines with a quantity below one are dropped, so a
// cart read back from storage always satisfies the cart invariants.
func New(lines []Line) *Cart {
	c := &Cart{lines: make([]Line, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i := c.indexOf(l.ProductID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// Lines returns a copy of the cart lines in insertion order
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Line returns the line for productID
func (c *Cart) Line(productID int64) (Line, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// Add increments the quantity of an existing line by one or appends a new
// line with quantity one. No stock bound is applied here.
func (c *Cart) Add(p catalog.Product) {
	if i := c.indexOf(p.ID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, Line{
		ProductID:     p.ID,
		Name:          p.Name,
		Brand:         p.Brand,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Quantity:      1,
	})
}

// Remove deletes the line for productID. Removing an absent product is a no-op.
func (c *Cart) Remove(productID int64) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// SetQuantity sets the absolute quantity of a line. Callers clamp the value;
// the only rule enforced here is that an absent product is left untouched.
func (c *Cart) SetQuantity(productID int64, quantity int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.lines[i].Quantity = quantity
	return true
}

// Clear removes every line
func (c *Cart) Clear() {
	c.lines = c.lines[:0]
}

// Total returns the sum of all line subtotals
func (c *Cart) Total() decimal.Decimal {
	return Total(c.lines)
}

// RefreshSnapshots updates price, name and stock of every line from the given
// catalog and reports whether any line changed. Lines whose product is
// unknown keep their previous snapshot.
func (c *Cart) RefreshSnapshots(products map[int64]catalog.Product) bool {
	changed := false
	for i := range c.lines {
		p, ok := products[c.lines[i].ProductID]
		if !ok {
			continue
		}
		l := c.lines[i]
		l.Name = p.Name
		l.Brand = p.Brand
		l.Category = p.Category
		l.Price = p.Price
		l.StockQuantity = p.StockQuantity
		if l.Name != c.lines[i].Name || l.Brand != c.lines[i].Brand || l.Category != c.lines[i].Category ||
			!l.Price.Equal(c.lines[i].Price) || l.StockQuantity != c.lines[i].StockQuantity {
			c.lines[i] = l
			changed = true
		}
	}
	return changed
}

func (c *Cart) indexOf(productID int64) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Total returns the sum of price × quantity over lines
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// StockViolation describes a line whose quantity exceeds the last known stock
type StockViolation struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockViolations checks every line against the most recently fetched stock.
// When stock has no entry for a line, the line's own snapshot is used.
func StockViolations(lines []Line, stock map[int64]int) []StockViolation {
	var out []StockViolation
	for _, l := range lines {
		available, ok := stock[l.ProductID]
		if !ok {
			available = l.StockQuantity
		}
		if l.Quantity > available {
			out = append(out, StockViolation{
				ProductID: l.ProductID,
				Name:      l.Name,
				Requested: l.Quantity,
				Available: available,
			})
		}
	}
	return out
}

// ClampQuantity bounds quantity to [1, stock]. A non-positive stock still
// yields one so the line stays valid; checkout reports the overrun.
func ClampQuantity(quantity, stock int) int {
	if stock < 1 {
		stock = 1
	}
	if quantity < 1 {
		return 1
	}
	if quantity > stock {
		return stock
	}
	return quantity
}
