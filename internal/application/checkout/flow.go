// Package checkout runs the checkout saga: stock validation, the payment
// widget round trip and the ordered server steps that follow a payment.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/omkarjtg/ecomm/internal/application/inflight"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/omkarjtg/ecomm/internal/domain/checkout"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/domain/trade"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/infrastructure/payment"
	"github.com/omkarjtg/ecomm/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// User-facing messages
const (
	MsgPaymentCancelled = "Payment cancelled"
	MsgOrderPlaced      = "Order placed successfully!"
	MsgSessionFailed    = "Failed to start payment. Please try again."
	MsgVerifyFailed     = "Payment verification failed. If you were charged, please contact support."
	MsgOrderFailed      = "Payment received but the order could not be placed. Please contact support."
	MsgStockFailed      = "Order placed but stock could not be updated for some items."
	MsgInterrupted      = "Checkout was interrupted"
)

// OrdersPath is where a completed checkout navigates to
const OrdersPath = "/orders"

var (
	ErrEmptyCart       = shared.NewDomainError("EMPTY_CART", "Your cart is empty")
	ErrNoCheckout      = shared.NewDomainError("NOT_FOUND", "No checkout in progress")
	ErrNotVerified     = shared.NewDomainError("PAYMENT_NOT_VERIFIED", "Payment verification failed")
	ErrNothingToResume = shared.NewDomainError("INVALID_STATE", "This checkout cannot be resumed")
	ErrUnresolved      = shared.NewDomainError("INVALID_STATE",
		"A paid checkout is still incomplete. Resume it before starting a new one.")
	ErrSessionMismatch = shared.NewDomainError("INVALID_INPUT", "Payment does not belong to this checkout")
	ErrSandboxDisabled = shared.NewDomainError("NOT_FOUND", "Sandbox payments are not enabled")
)

// Cart is the cart state checkout reads and clears
type Cart interface {
	Lines() []cart.Line
	Stock() map[int64]int
	ClearCart(ctx context.Context) error
}

// Buyer returns the signed-in user
type Buyer interface {
	CurrentUser() (identity.User, bool)
}

// PaymentGateway creates gateway orders and verifies widget callbacks
type PaymentGateway interface {
	CreateSession(ctx context.Context, amount int64, currency, receipt string) (checkout.Session, error)
	Verify(ctx context.Context, o checkout.WidgetOutcome) (bool, error)
}

// OrderPlacer creates order records
type OrderPlacer interface {
	Create(ctx context.Context, req trade.CreateOrderRequest, idempotencyKey string) (trade.Order, error)
}

// StockUpdater lowers product stock after a purchase
type StockUpdater interface {
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

// OrderDates looks up when a gateway order was created
type OrderDates interface {
	OrderDate(ctx context.Context, gatewayOrderID string) (string, error)
}

// View is what the checkout page renders
type View struct {
	State      checkout.State         `json:"state"`
	Intent     *checkout.Intent       `json:"intent,omitempty"`
	Widget     *payment.WidgetOptions `json:"widget,omitempty"`
	Violations []cart.StockViolation  `json:"violations,omitempty"`
	Resumable  bool                   `json:"resumable"`
	// Total is the gateway charge in major units with its currency symbol
	Total     string `json:"total,omitempty"`
	OrderDate string `json:"orderDate,omitempty"`
	Redirect   string                 `json:"redirect,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

// Deps holds the collaborators of a Flow
type Deps struct {
	Cart     Cart
	Buyer    Buyer
	Payments PaymentGateway
	Orders   OrderPlacer
	Stock    StockUpdater
	Storage  localstore.Store
	Events   shared.EventPublisher
	Widget   *payment.Widget
	// Dates is optional; without it the success view carries no order date
	Dates OrderDates
	// Sandbox is optional; without it the sandbox pay path is refused
	Sandbox *payment.Sandbox
	Notices *notice.Center
	Logger  *zap.Logger
}

// Flow is the checkout state machine. Only one operation runs at a time; a
// second one is refused with shared.ErrInProgress.
type Flow struct {
	deps     Deps
	currency string
	flags    *inflight.Flags

	mu     sync.RWMutex
	intent *checkout.Intent
}

const flowAction = "checkout"

// NewFlow creates a checkout flow
func NewFlow(deps Deps) *Flow {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notices == nil {
		deps.Notices = notice.NewCenter()
	}
	currency := payment.DefaultCurrency
	if deps.Widget != nil && deps.Widget.Config().Currency != "" {
		currency = deps.Widget.Config().Currency
	}
	return &Flow{deps: deps, currency: currency, flags: inflight.New()}
}

// Busy reports whether a checkout operation is running
func (f *Flow) Busy() bool {
	return f.flags.Busy(flowAction)
}

// Current returns the view of the current checkout
func (f *Flow) Current() View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.viewLocked()
}

// Restore loads a persisted intent at startup. An intent interrupted while a
// step was running is moved to the error state so it can be resumed.
func (f *Flow) Restore(ctx context.Context) error {
	var in checkout.Intent
	ok, err := localstore.GetJSON(ctx, f.deps.Storage, localstore.KeyCheckoutIntent, &in)
	if err != nil {
		f.deps.Logger.Warn("Discarding unreadable checkout intent", zap.Error(err))
		f.forget(ctx)
		return nil
	}
	if !ok {
		return nil
	}
	if !in.State.IsValid() || in.State == checkout.StateDone || in.State == checkout.StateViewingCart {
		f.forget(ctx)
		return nil
	}

	switch in.State {
	case checkout.StateValidating:
		in.Fail("", MsgInterrupted)
	case checkout.StateVerifyingPayment, checkout.StatePlacingOrder, checkout.StateUpdatingStock:
		in.Fail(stepOf(in.State), MsgInterrupted)
	}

	f.mu.Lock()
	f.intent = &in
	f.mu.Unlock()
	f.persist(ctx, &in)
	if in.State == checkout.StateError {
		f.publish(ctx, checkout.NewFailedEvent(&in))
	}
	f.deps.Logger.Info("Restored checkout intent",
		zap.String("intent_id", in.ID.String()),
		zap.String("state", in.State.String()),
		zap.Bool("paid", in.Paid()),
	)
	return nil
}

// Begin validates the cart against the last fetched stock, creates a gateway
// order and returns the widget options. A stock violation stops before any
// server call.
func (f *Flow) Begin(ctx context.Context) (View, error) {
	release, err := f.flags.Acquire(flowAction)
	if err != nil {
		return f.Current(), err
	}
	defer release()

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "begin")
	defer span.End()

	if cur := f.snapshot(); cur != nil && cur.Paid() && cur.State != checkout.StateDone {
		f.deps.Notices.Error(ErrUnresolved.Message)
		return f.Current(), ErrUnresolved
	}

	user, ok := f.deps.Buyer.CurrentUser()
	if !ok {
		return f.Current(), shared.ErrUnauthorized
	}
	if user.ID == 0 {
		return f.Current(), shared.ErrUnknownUser
	}
	lines := f.deps.Cart.Lines()
	if len(lines) == 0 {
		return f.Current(), ErrEmptyCart
	}

	amount := payment.ToMinorUnits(cart.Total(lines), f.currency)
	intent := checkout.NewIntent(user.ID, lines, amount, f.currency)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIntentID, intent.ID.String(),
		telemetry.SpanAttrAmount, amount,
		telemetry.SpanAttrLineCount, len(lines),
	)

	if violations := cart.StockViolations(lines, f.deps.Cart.Stock()); len(violations) > 0 {
		intent.FailValidation(shared.ErrInsufficientStock.Message, violations)
		f.adopt(ctx, intent)
		f.publish(ctx, checkout.NewFailedEvent(intent))
		f.deps.Notices.Error(shared.ErrInsufficientStock.Message)
		telemetry.RecordError(span, shared.ErrInsufficientStock)
		return f.Current(), shared.ErrInsufficientStock
	}

	session, err := f.deps.Payments.CreateSession(ctx, amount, f.currency, intent.ID.String())
	if err != nil {
		msg := apiclient.MessageOf(err, MsgSessionFailed)
		intent.Fail("", msg)
		f.adopt(ctx, intent)
		f.publish(ctx, checkout.NewFailedEvent(intent))
		f.deps.Notices.Error(msg)
		f.deps.Logger.Warn("Payment session creation failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return f.Current(), err
	}
	if err := intent.AttachSession(session); err != nil {
		return f.Current(), err
	}
	f.adopt(ctx, intent)
	f.publish(ctx, checkout.NewStartedEvent(intent))
	telemetry.SetOK(span)

	v := f.Current()
	opts := f.widgetOptions(session, user)
	v.Widget = &opts
	return v, nil
}

// CompletePayment handles the widget's terminal callback. A dismissal goes
// back to the cart; a success runs the remaining saga steps.
func (f *Flow) CompletePayment(ctx context.Context, o checkout.WidgetOutcome) (View, error) {
	if err := o.Validate(); err != nil {
		return f.Current(), err
	}
	release, err := f.flags.Acquire(flowAction)
	if err != nil {
		return f.Current(), err
	}
	defer release()

	if o.Kind == checkout.OutcomeDismissed {
		return f.dismiss(ctx)
	}
	return f.completePayment(ctx, o)
}

// PaySandbox completes the awaited payment with a locally signed callback
func (f *Flow) PaySandbox(ctx context.Context) (View, error) {
	if f.deps.Sandbox == nil {
		return f.Current(), ErrSandboxDisabled
	}
	release, err := f.flags.Acquire(flowAction)
	if err != nil {
		return f.Current(), err
	}
	defer release()

	cur := f.snapshot()
	if cur == nil || cur.State != checkout.StateAwaitingPayment || cur.Session == nil {
		return f.Current(), ErrNoCheckout
	}
	return f.completePayment(ctx, f.deps.Sandbox.Pay(*cur.Session))
}

// Dismiss closes the widget without paying, or abandons a failed checkout
func (f *Flow) Dismiss(ctx context.Context) (View, error) {
	release, err := f.flags.Acquire(flowAction)
	if err != nil {
		return f.Current(), err
	}
	defer release()
	return f.dismiss(ctx)
}

// Resume continues a paid checkout from its first incomplete step
func (f *Flow) Resume(ctx context.Context) (View, error) {
	release, err := f.flags.Acquire(flowAction)
	if err != nil {
		return f.Current(), err
	}
	defer release()

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "resume")
	defer span.End()

	f.mu.Lock()
	intent := f.intent
	f.mu.Unlock()
	if intent == nil {
		return f.Current(), ErrNoCheckout
	}
	if !intent.Resumable() {
		return f.Current(), ErrNothingToResume
	}
	f.deps.Logger.Info("Resuming checkout",
		zap.String("intent_id", intent.ID.String()),
		zap.String("failed_step", string(intent.FailedStep)),
	)
	v, err := f.runSteps(ctx, intent)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return v, err
}

func (f *Flow) completePayment(ctx context.Context, o checkout.WidgetOutcome) (View, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "complete_payment")
	defer span.End()

	f.mu.Lock()
	intent := f.intent
	f.mu.Unlock()
	if intent == nil {
		return f.Current(), ErrNoCheckout
	}
	if intent.Session != nil && intent.Session.GatewayOrderID != o.OrderID {
		return f.Current(), ErrSessionMismatch
	}
	if err := f.mutate(func() error { return intent.RecordPayment(o) }); err != nil {
		return f.Current(), err
	}
	f.persist(ctx, intent)

	v, err := f.runSteps(ctx, intent)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return v, err
}

func (f *Flow) dismiss(ctx context.Context) (View, error) {
	f.mu.Lock()
	intent := f.intent
	f.mu.Unlock()
	if intent == nil {
		return f.Current(), nil
	}

	msg := MsgPaymentCancelled
	switch intent.State {
	case checkout.StateAwaitingPayment:
		if err := f.mutate(func() error { return intent.TransitionTo(checkout.StateViewingCart) }); err != nil {
			return f.Current(), err
		}
		f.publish(ctx, checkout.NewAbandonedEvent(intent, true))
		f.deps.Notices.Info(MsgPaymentCancelled)
	case checkout.StateError:
		var failedStep checkout.Step
		if err := f.mutate(func() error {
			if intent.LastError != "" {
				msg = intent.LastError
			}
			failedStep = intent.FailedStep
			return intent.TransitionTo(checkout.StateViewingCart)
		}); err != nil {
			return f.Current(), err
		}
		f.publish(ctx, checkout.NewAbandonedEvent(intent, false))
		if intent.Paid() {
			f.deps.Logger.Error("Paid checkout abandoned",
				zap.String("intent_id", intent.ID.String()),
				zap.String("failed_step", string(failedStep)),
				zap.Int64("order_id", intent.OrderID),
			)
		}
	case checkout.StateDone, checkout.StateViewingCart:
	default:
		return f.Current(), shared.ErrInvalidState
	}

	f.forget(ctx)
	return View{State: checkout.StateViewingCart, Message: msg}, nil
}

// runSteps runs every incomplete step in order. Each completed step is
// persisted before the next one starts.
func (f *Flow) runSteps(ctx context.Context, intent *checkout.Intent) (View, error) {
	for {
		step, ok := intent.NextStep()
		if !ok {
			break
		}
		if err := f.mutate(func() error { return intent.TransitionTo(step.State()) }); err != nil {
			return f.Current(), err
		}
		f.persist(ctx, intent)

		stepCtx, span := telemetry.StartServiceSpan(ctx, "checkout", string(step),
			telemetry.WithAttribute(telemetry.SpanAttrIntentID, intent.ID.String()),
			telemetry.WithAttribute(telemetry.SpanAttrStep, string(step)),
		)
		err := f.runStep(stepCtx, intent, step)
		if err != nil {
			telemetry.RecordError(span, err)
		}
		span.End()

		if err != nil {
			msg := failureMessage(step, err)
			f.mutate(func() error {
				intent.Fail(step, msg)
				return nil
			})
			f.persist(ctx, intent)
			f.publish(ctx, checkout.NewFailedEvent(intent))
			f.deps.Notices.Error(msg)
			f.deps.Logger.Error("Checkout step failed",
				zap.String("intent_id", intent.ID.String()),
				zap.String("step", string(step)),
				zap.Error(err),
			)
			return f.Current(), err
		}

		f.mutate(func() error {
			intent.Complete(step)
			return nil
		})
		f.persist(ctx, intent)
		f.publish(ctx, checkout.NewStepCompletedEvent(intent, step))
	}
	return f.finish(ctx, intent)
}

func (f *Flow) runStep(ctx context.Context, intent *checkout.Intent, step checkout.Step) error {
	switch step {
	case checkout.StepVerifyPayment:
		verified, err := f.deps.Payments.Verify(ctx, *intent.Payment)
		if err != nil {
			return err
		}
		if !verified {
			return ErrNotVerified
		}
		return nil
	case checkout.StepCreateOrder:
		order, err := f.deps.Orders.Create(ctx, intent.OrderRequest(), intent.IdempotencyKey)
		if err != nil {
			return err
		}
		f.mutate(func() error {
			intent.OrderID = order.OrderID
			return nil
		})
		return nil
	case checkout.StepDecrementStock:
		return f.decrementStock(ctx, intent)
	}
	return fmt.Errorf("checkout: unknown step %q", step)
}

// decrementStock launches every pending decrement together and waits for all
// of them. A failing line does not cancel the others; successful lines are
// recorded so a resume only retries the failed ones.
func (f *Flow) decrementStock(ctx context.Context, intent *checkout.Intent) error {
	pending := intent.PendingDecrements()
	done := make([]bool, len(pending))

	var g errgroup.Group
	for i, d := range pending {
		g.Go(func() error {
			if err := f.deps.Stock.DecrementStock(ctx, d.ProductID, d.Quantity); err != nil {
				f.deps.Logger.Warn("Stock decrement failed",
					zap.Int64("product_id", d.ProductID),
					zap.Int("quantity", d.Quantity),
					zap.Error(err),
				)
				return err
			}
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	span := telemetry.SpanFromContext(ctx)
	f.mutate(func() error {
		for i, ok := range done {
			if ok {
				intent.MarkDecremented(pending[i].ProductID)
				continue
			}
			telemetry.AddEvent(span, "stock_decrement_failed",
				"product_id", pending[i].ProductID,
				"quantity", pending[i].Quantity,
			)
		}
		return nil
	})
	return err
}

func (f *Flow) finish(ctx context.Context, intent *checkout.Intent) (View, error) {
	if err := f.mutate(func() error { return intent.TransitionTo(checkout.StateDone) }); err != nil {
		return f.Current(), err
	}
	if err := f.deps.Cart.ClearCart(ctx); err != nil {
		f.deps.Logger.Warn("Failed to clear cart after checkout", zap.Error(err))
	}
	if err := f.deps.Storage.Remove(ctx, localstore.KeyCheckoutIntent); err != nil {
		f.deps.Logger.Warn("Failed to remove checkout intent", zap.Error(err))
	}
	f.publish(ctx, checkout.NewCompletedEvent(intent))
	f.deps.Notices.Success(MsgOrderPlaced)
	f.deps.Logger.Info("Checkout completed",
		zap.String("intent_id", intent.ID.String()),
		zap.Int64("order_id", intent.OrderID),
	)

	v := f.Current()
	v.Redirect = OrdersPath
	v.Message = MsgOrderPlaced
	v.OrderDate = f.orderDate(ctx, intent)
	return v, nil
}

// orderDate asks the server when the gateway order was created. A failed
// lookup leaves the date empty; the order itself is already placed.
func (f *Flow) orderDate(ctx context.Context, intent *checkout.Intent) string {
	if f.deps.Dates == nil || intent.Session == nil {
		return ""
	}
	date, err := f.deps.Dates.OrderDate(ctx, intent.Session.GatewayOrderID)
	if err != nil {
		f.deps.Logger.Warn("Order date lookup failed",
			zap.String("gateway_order_id", intent.Session.GatewayOrderID),
			zap.Error(err),
		)
		return ""
	}
	return date
}

func (f *Flow) widgetOptions(s checkout.Session, u identity.User) payment.WidgetOptions {
	if f.deps.Widget == nil {
		return payment.WidgetOptions{Amount: s.Amount, Currency: s.Currency, OrderID: s.GatewayOrderID}
	}
	opts := f.deps.Widget.Options(s, payment.Prefill{Name: u.Username, Email: u.Email})
	opts.Sandbox = f.deps.Sandbox != nil
	return opts
}

// adopt makes intent the current checkout and persists it
func (f *Flow) adopt(ctx context.Context, intent *checkout.Intent) {
	f.mu.Lock()
	f.intent = intent
	f.mu.Unlock()
	f.persist(ctx, intent)
}

// mutate applies fn to the current intent under the write lock
func (f *Flow) mutate(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn()
}

func (f *Flow) persist(ctx context.Context, intent *checkout.Intent) {
	f.mu.RLock()
	snap := intent.Clone()
	f.mu.RUnlock()
	if err := localstore.SetJSON(ctx, f.deps.Storage, localstore.KeyCheckoutIntent, snap); err != nil {
		f.deps.Logger.Error("Failed to persist checkout intent",
			zap.String("intent_id", snap.ID.String()),
			zap.Error(err),
		)
	}
}

func (f *Flow) forget(ctx context.Context) {
	f.mu.Lock()
	f.intent = nil
	f.mu.Unlock()
	if err := f.deps.Storage.Remove(ctx, localstore.KeyCheckoutIntent); err != nil {
		f.deps.Logger.Warn("Failed to remove checkout intent", zap.Error(err))
	}
}

func (f *Flow) publish(ctx context.Context, e shared.DomainEvent) {
	if f.deps.Events == nil {
		return
	}
	if err := f.deps.Events.Publish(ctx, e); err != nil {
		f.deps.Logger.Warn("Failed to publish checkout event",
			zap.String("event_type", e.EventType()),
			zap.Error(err),
		)
	}
}

func (f *Flow) snapshot() *checkout.Intent {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.intent == nil {
		return nil
	}
	return f.intent.Clone()
}

func (f *Flow) viewLocked() View {
	if f.intent == nil {
		return View{State: checkout.StateViewingCart}
	}
	snap := f.intent.Clone()
	v := View{
		State:      snap.State,
		Intent:     snap,
		Violations: snap.Violations,
		Resumable:  snap.Resumable(),
	}
	if snap.Session != nil {
		amount := payment.FromMinorUnits(snap.Session.Amount, snap.Session.Currency)
		v.Total = payment.FormatAmount(amount, snap.Session.Currency)
	}
	return v
}

func failureMessage(step checkout.Step, err error) string {
	switch step {
	case checkout.StepVerifyPayment:
		if errors.Is(err, ErrNotVerified) {
			return MsgVerifyFailed
		}
		return apiclient.MessageOf(err, MsgVerifyFailed)
	case checkout.StepCreateOrder:
		return MsgOrderFailed
	case checkout.StepDecrementStock:
		return MsgStockFailed
	}
	return apiclient.MessageOf(err, apiclient.GenericMessage)
}

func stepOf(s checkout.State) checkout.Step {
	for _, step := range checkout.Steps {
		if step.State() == s {
			return step
		}
	}
	return ""
}
