package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/omkarjtg/ecomm/internal/domain/trade"
)

// OrdersAPI wraps the order endpoints
type OrdersAPI struct {
	c *Client
}

// Orders returns the order endpoints
func (c *Client) Orders() *OrdersAPI {
	return &OrdersAPI{c: c}
}

// Create places an order. idempotencyKey is sent as a header so a replayed
// request for the same checkout can be recognised by the server.
func (a *OrdersAPI) Create(ctx context.Context, req trade.CreateOrderRequest, idempotencyKey string) (trade.Order, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[HeaderIdempotencyKey] = idempotencyKey
	}
	resp, err := a.c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/api/orders/create",
		Body:    req,
		Headers: headers,
	})
	if err != nil {
		return trade.Order{}, err
	}
	var o trade.Order
	if err := resp.Decode(&o); err != nil {
		return trade.Order{}, err
	}
	return o, nil
}

// ByUser lists the orders of a user, newest first as served
func (a *OrdersAPI) ByUser(ctx context.Context, userID int64) ([]trade.Order, error) {
	resp, err := a.c.Get(ctx, fmt.Sprintf("/api/orders/user/%d", userID), nil)
	if err != nil {
		return nil, err
	}
	var out []trade.Order
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
