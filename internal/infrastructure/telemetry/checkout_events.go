package telemetry

import (
	"context"
	"time"

	"github.com/omkarjtg/ecomm/internal/domain/checkout"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
)

// CheckoutEventHandler feeds checkout events into CheckoutMetrics
type CheckoutEventHandler struct {
	metrics *CheckoutMetrics
}

// NewCheckoutEventHandler creates a handler; nil metrics records nothing
func NewCheckoutEventHandler(m *CheckoutMetrics) *CheckoutEventHandler {
	if m == nil {
		m = NopCheckoutMetrics()
	}
	return &CheckoutEventHandler{metrics: m}
}

// EventTypes implements shared.EventHandler
func (h *CheckoutEventHandler) EventTypes() []string {
	return []string{
		checkout.EventTypeStarted,
		checkout.EventTypeStepCompleted,
		checkout.EventTypeFailed,
		checkout.EventTypeCompleted,
		checkout.EventTypeAbandoned,
	}
}

// Handle implements shared.EventHandler
func (h *CheckoutEventHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	switch ev := e.(type) {
	case *checkout.StartedEvent:
		h.metrics.RecordStarted(ctx, ev.Intent.Currency)
	case *checkout.StepCompletedEvent:
		if ev.Step == checkout.StepVerifyPayment {
			h.metrics.RecordVerification(ctx, true, ev.Intent.Amount, ev.Intent.Currency)
		}
	case *checkout.FailedEvent:
		h.onFailed(ctx, ev)
	case *checkout.CompletedEvent:
		h.metrics.RecordFinished(ctx, OutcomeDone, ev.Elapsed)
	case *checkout.AbandonedEvent:
		outcome := OutcomeError
		if ev.Dismissed {
			outcome = OutcomeDismissed
		}
		h.metrics.RecordFinished(ctx, outcome, time.Since(ev.Intent.CreatedAt))
	}
	return nil
}

func (h *CheckoutEventHandler) onFailed(ctx context.Context, ev *checkout.FailedEvent) {
	in := ev.Intent
	if ev.Step == "" {
		h.metrics.RecordFinished(ctx, OutcomeRejected, time.Since(in.CreatedAt))
		return
	}
	h.metrics.RecordStepFailure(ctx, string(ev.Step))
	switch ev.Step {
	case checkout.StepVerifyPayment:
		h.metrics.RecordVerification(ctx, false, in.Amount, in.Currency)
	case checkout.StepDecrementStock:
		h.metrics.RecordDecrementFailures(ctx, len(in.PendingDecrements()))
	}
}

var _ shared.EventHandler = (*CheckoutEventHandler)(nil)
