package payment

import (
	"errors"
	"strings"

	"github.com/omkarjtg/ecomm/internal/infrastructure/config"
)

// Defaults for the hosted payment widget
const (
	DefaultCurrency   = "INR"
	DefaultThemeColor = "#3399cc"
)

// GatewayConfig contains the client-side settings of the payment widget.
// The gateway secret stays on the server; only the public key ID is known here.
type GatewayConfig struct {
	// KeyID is the public key the widget is opened with
	KeyID string
	// Currency is the ISO 4217 code amounts are charged in
	Currency string
	// MerchantName and Description are shown inside the widget
	MerchantName string
	Description  string
	ThemeColor   string
	// SandboxSecret enables the local sandbox widget
	SandboxSecret string
}

// Errors for configuration validation
var (
	ErrMissingKeyID       = errors.New("payment: missing key ID")
	ErrInvalidCurrency    = errors.New("payment: currency must be a 3-letter ISO code")
	ErrMissingMerchant    = errors.New("payment: missing merchant name")
	ErrSandboxUnavailable = errors.New("payment: sandbox widget is not enabled")
)

// NewGatewayConfig builds the widget settings from the application config
func NewGatewayConfig(cfg config.PaymentConfig) GatewayConfig {
	gc := GatewayConfig{
		KeyID:         cfg.KeyID,
		Currency:      strings.ToUpper(cfg.Currency),
		MerchantName:  cfg.MerchantName,
		Description:   cfg.Description,
		ThemeColor:    cfg.ThemeColor,
		SandboxSecret: cfg.SandboxSecret,
	}
	if gc.Currency == "" {
		gc.Currency = DefaultCurrency
	}
	if gc.ThemeColor == "" {
		gc.ThemeColor = DefaultThemeColor
	}
	return gc
}

// Validate validates the configuration. A missing key ID is accepted when
// the sandbox is enabled.
func (c GatewayConfig) Validate() error {
	if c.KeyID == "" && !c.Sandbox() {
		return ErrMissingKeyID
	}
	if _, err := currencyUnit(c.Currency); err != nil {
		return ErrInvalidCurrency
	}
	if c.MerchantName == "" {
		return ErrMissingMerchant
	}
	return nil
}

// Sandbox reports whether the local sandbox widget is enabled
func (c GatewayConfig) Sandbox() bool {
	return c.SandboxSecret != ""
}
