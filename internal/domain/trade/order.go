// Package trade holds the order records the storefront creates and reads back.
// Orders are server-owned; the client only builds creation requests and
// renders the history.
package trade

import (
	"bytes"
	"encoding/json"

	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// OrderStatus values reported by the store API
const (
	StatusCreated   = "CREATED"
	StatusPaid      = "PAID"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

// OrderLine is one item of an order creation request
type OrderLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CreateOrderRequest is the body of an order creation call
type CreateOrderRequest struct {
	UserID         int64       `json:"userId"`
	GatewayOrderID string      `json:"razorpayOrderId,omitempty"`
	PaymentID      string      `json:"razorpayPaymentId,omitempty"`
	Items          []OrderLine `json:"items"`
}

// NewCreateOrderRequest builds a creation request from cart lines, keeping
// their order and snapshot prices.
func NewCreateOrderRequest(userID int64, lines []cart.Line) CreateOrderRequest {
	items := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	return CreateOrderRequest{UserID: userID, Items: items}
}

// OrderItem is a line of an order read back from the server
type OrderItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

// Order is an order record as returned by the order history endpoint
type Order struct {
	OrderID        int64           `json:"orderId"`
	GatewayOrderID string          `json:"razorpayOrderId,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	OrderDate      Timestamp       `json:"orderDate"`
	Items          []OrderItem     `json:"items"`
}

// ItemCount returns the total quantity across all items
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// ItemsTotal recomputes the amount from the items
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// StockDecrement is the body of a stock decrement call
type StockDecrement struct {
	ProductID int64 `json:"-"`
	Quantity  int   `json:"quantity"`
}

// StockDecrements returns one decrement per cart line
func StockDecrements(lines []cart.Line) []StockDecrement {
	out := make([]StockDecrement, 0, len(lines))
	for _, l := range lines {
		out = append(out, StockDecrement{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

// Timestamp is the order date as sent by the server. Instants arrive either as
// ISO strings or as numeric epoch values depending on the serializer setup;
// both are kept verbatim for display.
type Timestamp string

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Timestamp(n.String())
	return nil
}
