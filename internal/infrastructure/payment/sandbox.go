package payment

import (
	"strings"

	"github.com/google/uuid"
	"github.com/omkarjtg/ecomm/internal/domain/checkout"
)

// Sandbox stands in for the hosted widget during development. It produces
// success callbacks signed with the shared sandbox secret, so a store API
// running with the same secret verifies them.
type Sandbox struct {
	secret string
}

// NewSandbox returns a sandbox widget, or ErrSandboxUnavailable when the
// configuration has no sandbox secret.
func NewSandbox(cfg GatewayConfig) (*Sandbox, error) {
	if !cfg.Sandbox() {
		return nil, ErrSandboxUnavailable
	}
	return &Sandbox{secret: cfg.SandboxSecret}, nil
}

// Pay simulates a successful payment for the session
func (s *Sandbox) Pay(session checkout.Session) checkout.WidgetOutcome {
	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return checkout.WidgetOutcome{
		Kind:      checkout.OutcomeSuccess,
		PaymentID: paymentID,
		OrderID:   session.GatewayOrderID,
		Signature: Signature(s.secret, session.GatewayOrderID, paymentID),
	}
}

// Verify checks a callback the way the store API does
func (s *Sandbox) Verify(o checkout.WidgetOutcome) bool {
	return VerifySignature(s.secret, o.OrderID, o.PaymentID, o.Signature)
}
