package payment

import (
	"github.com/omkarjtg/ecomm/internal/domain/checkout"
)

// Prefill is the buyer contact info shown pre-filled in the widget
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Theme styles the widget
type Theme struct {
	Color string `json:"color"`
}

// WidgetOptions is everything the hosted widget is opened with. The browser
// side opens the widget with these options and posts the outcome back.
type WidgetOptions struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
	// Sandbox is set when the outcome must be posted to the sandbox endpoint
	// instead of coming from the real gateway
	Sandbox bool `json:"sandbox,omitempty"`
}

// Widget builds widget options for gateway sessions
type Widget struct {
	cfg GatewayConfig
}

// NewWidget creates a widget builder
func NewWidget(cfg GatewayConfig) *Widget {
	return &Widget{cfg: cfg}
}

// Config returns the gateway settings
func (w *Widget) Config() GatewayConfig {
	return w.cfg
}

// Options returns the options to open the widget for session
func (w *Widget) Options(s checkout.Session, buyer Prefill) WidgetOptions {
	currency := s.Currency
	if currency == "" {
		currency = w.cfg.Currency
	}
	return WidgetOptions{
		Key:         w.cfg.KeyID,
		Amount:      s.Amount,
		Currency:    currency,
		Name:        w.cfg.MerchantName,
		Description: w.cfg.Description,
		OrderID:     s.GatewayOrderID,
		Prefill:     buyer,
		Theme:       Theme{Color: w.cfg.ThemeColor},
		Sandbox:     w.cfg.Sandbox(),
	}
}
