// Package checkout models the checkout saga: the states a checkout passes
// through and the persisted intent record that lets a partially completed
// checkout be resumed.
package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// State is a checkout flow state
type State string

const (
	StateViewingCart      State = "viewing_cart"
	StateValidating       State = "validating"
	StateAwaitingPayment  State = "awaiting_payment"
	StateVerifyingPayment State = "verifying_payment"
	StatePlacingOrder     State = "placing_order"
	StateUpdatingStock    State = "updating_stock"
	StateDone             State = "done"
	StateError            State = "error"
)

// IsValid checks if the state is known
func (s State) IsValid() bool {
	switch s {
	case StateViewingCart, StateValidating, StateAwaitingPayment, StateVerifyingPayment,
		StatePlacingOrder, StateUpdatingStock, StateDone, StateError:
		return true
	}
	return false
}

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further step will run without user action
func (s State) IsTerminal() bool {
	return s == StateViewingCart || s == StateDone || s == StateError
}

// CanTransitionTo checks if the state can transition to target
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StateViewingCart, StateDone:
		return target == StateValidating
	case StateValidating:
		return target == StateAwaitingPayment || target == StateError
	case StateAwaitingPayment:
		return target == StateVerifyingPayment || target == StateViewingCart
	case StateVerifyingPayment:
		return target == StatePlacingOrder || target == StateError
	case StatePlacingOrder:
		return target == StateUpdatingStock || target == StateError
	case StateUpdatingStock:
		return target == StateDone || target == StateError
	case StateError:
		// resume re-enters the failed step; abandon goes back to the cart
		return target == StateViewingCart || target == StateValidating ||
			target == StateVerifyingPayment || target == StatePlacingOrder || target == StateUpdatingStock
	}
	return false
}

// Step is one server-side step of the saga, run in declaration order
type Step string

const (
	StepVerifyPayment  Step = "verify_payment"
	StepCreateOrder    Step = "create_order"
	StepDecrementStock Step = "decrement_stock"
)

// Steps lists the saga steps in execution order
var Steps = []Step{StepVerifyPayment, StepCreateOrder, StepDecrementStock}

// State returns the flow state while the step runs
func (s Step) State() State {
	switch s {
	case StepVerifyPayment:
		return StateVerifyingPayment
	case StepCreateOrder:
		return StatePlacingOrder
	case StepDecrementStock:
		return StateUpdatingStock
	}
	return StateError
}

// OutcomeKind distinguishes the two terminal widget callbacks
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeDismissed OutcomeKind = "dismissed"
)

// WidgetOutcome is what the payment widget reports back
type WidgetOutcome struct {
	Kind      OutcomeKind `json:"kind"`
	PaymentID string      `json:"paymentId,omitempty"`
	OrderID   string      `json:"orderId,omitempty"`
	Signature string      `json:"signature,omitempty"`
}

// Validate checks that a success outcome carries all three fields
func (o WidgetOutcome) Validate() error {
	switch o.Kind {
	case OutcomeDismissed:
		return nil
	case OutcomeSuccess:
		if o.PaymentID == "" || o.OrderID == "" || o.Signature == "" {
			return shared.NewDomainError("INVALID_INPUT", "Payment response is incomplete")
		}
		return nil
	}
	return shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown payment outcome %q", o.Kind))
}

// Session is the gateway order handed to the payment widget
type Session struct {
	GatewayOrderID string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt,omitempty"`
}

// Intent is the persisted record of one checkout attempt. It is written to
// local storage on every transition so that a reload or a failed step can be
// resumed from the first incomplete step.
type Intent struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey string          `json:"idempotencyKey"`
	UserID         int64           `json:"userId"`
	Lines          []cart.Line     `json:"lines"`
	Total          decimal.Decimal `json:"total"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	State          State           `json:"state"`
	Session        *Session        `json:"session,omitempty"`
	Payment        *WidgetOutcome  `json:"payment,omitempty"`
	Completed      []Step          `json:"completed,omitempty"`
	// OrderID is the server order created by the create_order step
	OrderID int64 `json:"orderId,omitempty"`
	// Decremented holds the product IDs whose stock decrement succeeded
	Decremented []int64               `json:"decremented,omitempty"`
	Violations  []cart.StockViolation `json:"violations,omitempty"`
	FailedStep  Step                  `json:"failedStep,omitempty"`
	LastError   string                `json:"lastError,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// NewIntent starts a checkout attempt for a snapshot of the cart
func NewIntent(userID int64, lines []cart.Line, amount int64, currency string) *Intent {
	now := time.Now()
	snapshot := make([]cart.Line, len(lines))
	copy(snapshot, lines)
	return &Intent{
		ID:             uuid.New(),
		IdempotencyKey: uuid.NewString(),
		UserID:         userID,
		Lines:          snapshot,
		Total:          cart.Total(snapshot),
		Amount:         amount,
		Currency:       currency,
		State:          StateValidating,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TransitionTo moves the intent to target
func (i *Intent) TransitionTo(target State) error {
	if !i.State.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot move checkout from %s to %s", i.State, target))
	}
	i.State = target
	i.UpdatedAt = time.Now()
	return nil
}

// AttachSession records the gateway order and opens the widget
func (i *Intent) AttachSession(s Session) error {
	if err := i.TransitionTo(StateAwaitingPayment); err != nil {
		return err
	}
	i.Session = &s
	return nil
}

// RecordPayment stores the widget's success callback
func (i *Intent) RecordPayment(o WidgetOutcome) error {
	if i.State != StateAwaitingPayment {
		return shared.NewDomainError("INVALID_STATE", "No payment is awaited for this checkout")
	}
	if o.Kind != OutcomeSuccess {
		return shared.NewDomainError("INVALID_INPUT", "Payment outcome is not a success")
	}
	if err := o.Validate(); err != nil {
		return err
	}
	i.Payment = &o
	i.UpdatedAt = time.Now()
	return nil
}

// Fail moves the intent to the error state, remembering the step that failed
func (i *Intent) Fail(step Step, message string) {
	i.State = StateError
	i.FailedStep = step
	i.LastError = message
	i.UpdatedAt = time.Now()
}

// FailValidation moves the intent to the error state before any payment
func (i *Intent) FailValidation(message string, violations []cart.StockViolation) {
	i.Violations = violations
	i.Fail("", message)
}

// Complete records step as done
func (i *Intent) Complete(step Step) {
	if i.IsCompleted(step) {
		return
	}
	i.Completed = append(i.Completed, step)
	i.UpdatedAt = time.Now()
}

// IsCompleted reports whether step already ran successfully
func (i *Intent) IsCompleted(step Step) bool {
	for _, s := range i.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// NextStep returns the first incomplete step
func (i *Intent) NextStep() (Step, bool) {
	for _, s := range Steps {
		if !i.IsCompleted(s) {
			return s, true
		}
	}
	return "", false
}

// Paid reports whether the widget reported a successful payment
func (i *Intent) Paid() bool {
	return i.Payment != nil
}

// Resumable reports whether the saga can continue from a failed step. Only
// paid intents are resumable; a failure before payment restarts checkout.
func (i *Intent) Resumable() bool {
	if i.State != StateError || !i.Paid() {
		return false
	}
	_, ok := i.NextStep()
	return ok
}

// MarkDecremented records a successful stock decrement for productID
func (i *Intent) MarkDecremented(productID int64) {
	for _, id := range i.Decremented {
		if id == productID {
			return
		}
	}
	i.Decremented = append(i.Decremented, productID)
}

// PendingDecrements returns the decrements that have not succeeded yet
func (i *Intent) PendingDecrements() []trade.StockDecrement {
	done := make(map[int64]struct{}, len(i.Decremented))
	for _, id := range i.Decremented {
		done[id] = struct{}{}
	}
	var out []trade.StockDecrement
	for _, d := range trade.StockDecrements(i.Lines) {
		if _, ok := done[d.ProductID]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// OrderRequest builds the order creation body for this intent
func (i *Intent) OrderRequest() trade.CreateOrderRequest {
	req := trade.NewCreateOrderRequest(i.UserID, i.Lines)
	if i.Session != nil {
		req.GatewayOrderID = i.Session.GatewayOrderID
	}
	if i.Payment != nil {
		req.PaymentID = i.Payment.PaymentID
	}
	return req
}

// Clone returns a deep copy of the intent
func (i *Intent) Clone() *Intent {
	out := *i
	out.Lines = append([]cart.Line(nil), i.Lines...)
	out.Completed = append([]Step(nil), i.Completed...)
	out.Decremented = append([]int64(nil), i.Decremented...)
	out.Violations = append([]cart.StockViolation(nil), i.Violations...)
	if i.Session != nil {
		s := *i.Session
		out.Session = &s
	}
	if i.Payment != nil {
		p := *i.Payment
		out.Payment = &p
	}
	return &out
}
