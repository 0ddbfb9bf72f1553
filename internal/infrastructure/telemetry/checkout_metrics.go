package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Checkout outcomes used as metric labels
const (
	OutcomeDone      = "done"
	OutcomeError     = "error"
	OutcomeDismissed = "dismissed"
	OutcomeRejected  = "rejected"
)

// CheckoutMetrics counts checkout attempts and where they end. Partial
// failures after payment are the ones that need manual support, so they get
// their own counter.
type CheckoutMetrics struct {
	logger *zap.Logger

	started        *Counter
	finished       *Counter
	stepFailures   *Counter
	verifications  *Counter
	chargedMinor   *Counter
	decrementFails *Counter
	duration       *Histogram
}

// NewCheckoutMetrics registers the checkout instruments on meter
func NewCheckoutMetrics(meter metric.Meter, logger *zap.Logger) (*CheckoutMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &CheckoutMetrics{logger: logger}

	var err error
	if m.started, err = NewCounter(meter, "storefront_checkout_started_total",
		"Checkout attempts that passed validation", "{checkouts}"); err != nil {
		return nil, err
	}
	if m.finished, err = NewCounter(meter, "storefront_checkout_finished_total",
		"Checkout attempts by final outcome", "{checkouts}"); err != nil {
		return nil, err
	}
	if m.stepFailures, err = NewCounter(meter, "storefront_checkout_step_failures_total",
		"Failed checkout steps", "{failures}"); err != nil {
		return nil, err
	}
	if m.verifications, err = NewCounter(meter, "storefront_payment_verifications_total",
		"Payment verification round-trips by result", "{verifications}"); err != nil {
		return nil, err
	}
	if m.chargedMinor, err = NewCounter(meter, "storefront_payment_amount_total",
		"Verified payment amounts in minor currency units", "{minor_units}"); err != nil {
		return nil, err
	}
	if m.decrementFails, err = NewCounter(meter, "storefront_stock_decrement_failures_total",
		"Stock decrements that failed after payment", "{decrements}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "storefront_checkout_duration_seconds",
		Description: "Time from checkout start to its final outcome",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// NopCheckoutMetrics returns metrics backed by a no-op meter
func NopCheckoutMetrics() *CheckoutMetrics {
	m, _ := NewCheckoutMetrics(noop.NewMeterProvider().Meter(TracerName), nil)
	return m
}

// RecordStarted counts a checkout that passed validation
func (m *CheckoutMetrics) RecordStarted(ctx context.Context, currency string) {
	m.started.Inc(ctx, AttrCurrency.String(currency))
}

// RecordFinished counts the final outcome of a checkout and its duration
func (m *CheckoutMetrics) RecordFinished(ctx context.Context, outcome string, elapsed time.Duration) {
	m.finished.Inc(ctx, AttrOutcome.String(outcome))
	m.duration.RecordDuration(ctx, elapsed, AttrOutcome.String(outcome))
}

// RecordStepFailure counts a failed saga step
func (m *CheckoutMetrics) RecordStepFailure(ctx context.Context, step string) {
	m.stepFailures.Inc(ctx, AttrStep.String(step))
}

// RecordVerification counts a verification result and, when verified, the
// amount charged.
func (m *CheckoutMetrics) RecordVerification(ctx context.Context, verified bool, amountMinor int64, currency string) {
	m.verifications.Inc(ctx, AttrVerified.Bool(verified))
	if verified {
		m.chargedMinor.Add(ctx, amountMinor, AttrCurrency.String(currency))
	}
}

// RecordDecrementFailures counts stock decrements that failed
func (m *CheckoutMetrics) RecordDecrementFailures(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.decrementFails.Add(ctx, int64(n))
}
