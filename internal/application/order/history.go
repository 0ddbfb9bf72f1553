// Package order serves the signed-in user's order history.
package order

import (
	"context"

	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/domain/trade"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/infrastructure/payment"
	"go.uber.org/zap"
)

// MsgHistoryFailed is shown when the history cannot be loaded
const MsgHistoryFailed = "Failed to load your orders"

// Lister fetches the orders of a user
type Lister interface {
	ByUser(ctx context.Context, userID int64) ([]trade.Order, error)
}

// Buyer returns the signed-in user
type Buyer interface {
	CurrentUser() (identity.User, bool)
}

// ImagePather returns the image URL of a product
type ImagePather func(productID int64) string

// Summary is an order ready to render
type Summary struct {
	trade.Order
	ItemCount      int    `json:"itemCount"`
	FormattedTotal string `json:"formattedTotal"`
}

// HistoryService lists past orders
type HistoryService struct {
	orders   Lister
	buyer    Buyer
	image    ImagePather
	currency string
	logger   *zap.Logger
}

// NewHistoryService creates a HistoryService. image may be nil.
func NewHistoryService(orders Lister, buyer Buyer, image ImagePather, currency string, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	return &HistoryService{orders: orders, buyer: buyer, image: image, currency: currency, logger: logger}
}

// History returns the orders of the signed-in user in the order served
func (s *HistoryService) History(ctx context.Context) ([]Summary, error) {
	user, ok := s.buyer.CurrentUser()
	if !ok {
		return nil, shared.ErrUnauthorized
	}
	if user.ID == 0 {
		return nil, shared.ErrUnknownUser
	}
	orders, err := s.orders.ByUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Failed to load order history", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, shared.NewDomainError("REMOTE_ERROR", apiclient.MessageOf(err, MsgHistoryFailed))
	}

	out := make([]Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.summarize(o))
	}
	return out, nil
}

func (s *HistoryService) summarize(o trade.Order) Summary {
	currency := o.Currency
	if currency == "" {
		currency = s.currency
	}
	amount := o.Amount
	if amount.IsZero() {
		amount = o.ItemsTotal()
	}
	if s.image != nil {
		items := make([]trade.OrderItem, len(o.Items))
		copy(items, o.Items)
		for i := range items {
			if items[i].ImageURL == "" {
				items[i].ImageURL = s.image(items[i].ProductID)
			}
		}
		o.Items = items
	}
	return Summary{
		Order:          o,
		ItemCount:      o.ItemCount(),
		FormattedTotal: payment.FormatAmount(amount, currency),
	}
}
