package apiclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/omkarjtg/ecomm/internal/domain/checkout"
)

// PaymentAPI wraps the payment gateway endpoints
type PaymentAPI struct {
	c *Client
}

// Payment returns the payment endpoints
func (c *Client) Payment() *PaymentAPI {
	return &PaymentAPI{c: c}
}

type createSessionRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// CreateSession creates a gateway order for amount minor units. The server
// answers with the gateway's JSON, sometimes wrapped in a JSON string.
func (a *PaymentAPI) CreateSession(ctx context.Context, amount int64, currency, receipt string) (checkout.Session, error) {
	req := createSessionRequest{Amount: amount, Currency: currency, Receipt: receipt}
	resp, err := a.c.Post(ctx, "/api/payment/create-order", req)
	if err != nil {
		return checkout.Session{}, err
	}

	body := resp.Body
	if text := resp.Text(); len(text) > 0 && text[0] == '{' {
		body = []byte(text)
	}
	var s checkout.Session
	if err := (&Response{Body: body}).Decode(&s); err != nil {
		return checkout.Session{}, err
	}
	if s.GatewayOrderID == "" {
		return checkout.Session{}, fmt.Errorf("apiclient: payment session has no order id")
	}
	if s.Amount == 0 {
		s.Amount = req.Amount
	}
	if s.Currency == "" {
		s.Currency = req.Currency
	}
	return s, nil
}

type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Verify asks the server to check the signature of a widget success callback
func (a *PaymentAPI) Verify(ctx context.Context, o checkout.WidgetOutcome) (bool, error) {
	req := verifyRequest{OrderID: o.OrderID, PaymentID: o.PaymentID, Signature: o.Signature}
	resp, err := a.c.Post(ctx, "/api/payment/verify", req)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := resp.Decode(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// OrderDate returns when the gateway order was created, as sent by the server
func (a *PaymentAPI) OrderDate(ctx context.Context, gatewayOrderID string) (string, error) {
	resp, err := a.c.Get(ctx, "/api/payment/order-date/"+url.PathEscape(gatewayOrderID), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
