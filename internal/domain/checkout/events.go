package checkout

import (
	"time"

	"github.com/omkarjtg/ecomm/internal/domain/shared"
)

// AggregateTypeIntent is the aggregate type of checkout events
const AggregateTypeIntent = "CheckoutIntent"

// Event types
const (
	EventTypeStarted       = "CheckoutStarted"
	EventTypeStepCompleted = "CheckoutStepCompleted"
	EventTypeFailed        = "CheckoutFailed"
	EventTypeCompleted     = "CheckoutCompleted"
	EventTypeAbandoned     = "CheckoutAbandoned"
)

// IntentEvent is a checkout event carrying a snapshot of the intent
type IntentEvent interface {
	shared.DomainEvent
	Snapshot() Intent
}

type intentEvent struct {
	shared.BaseDomainEvent
	Intent Intent `json:"intent"`
}

func newIntentEvent(eventType string, i *Intent) intentEvent {
	return intentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeIntent, i.ID),
		Intent:          *i.Clone(),
	}
}

// Snapshot returns the intent as it was when the event was raised
func (e *intentEvent) Snapshot() Intent {
	return e.Intent
}

// StartedEvent is raised once a cart passed validation and a payment session exists
type StartedEvent struct {
	intentEvent
}

// NewStartedEvent creates a StartedEvent
func NewStartedEvent(i *Intent) *StartedEvent {
	return &StartedEvent{intentEvent: newIntentEvent(EventTypeStarted, i)}
}

// StepCompletedEvent is raised after each saga step
type StepCompletedEvent struct {
	intentEvent
	Step Step `json:"step"`
}

// NewStepCompletedEvent creates a StepCompletedEvent
func NewStepCompletedEvent(i *Intent, step Step) *StepCompletedEvent {
	return &StepCompletedEvent{intentEvent: newIntentEvent(EventTypeStepCompleted, i), Step: step}
}

// FailedEvent is raised when the intent enters the error state
type FailedEvent struct {
	intentEvent
	Step    Step   `json:"step,omitempty"`
	Message string `json:"message"`
}

// NewFailedEvent creates a FailedEvent
func NewFailedEvent(i *Intent) *FailedEvent {
	return &FailedEvent{
		intentEvent: newIntentEvent(EventTypeFailed, i),
		Step:        i.FailedStep,
		Message:     i.LastError,
	}
}

// CompletedEvent is raised when every step succeeded
type CompletedEvent struct {
	intentEvent
	Elapsed time.Duration `json:"elapsed"`
}

// NewCompletedEvent creates a CompletedEvent
func NewCompletedEvent(i *Intent) *CompletedEvent {
	return &CompletedEvent{
		intentEvent: newIntentEvent(EventTypeCompleted, i),
		Elapsed:     i.UpdatedAt.Sub(i.CreatedAt),
	}
}

// AbandonedEvent is raised when the buyer dismisses the widget or drops a
// failed intent
type AbandonedEvent struct {
	intentEvent
	// Dismissed is set when the widget was closed without paying
	Dismissed bool `json:"dismissed"`
}

// NewAbandonedEvent creates an AbandonedEvent
func NewAbandonedEvent(i *Intent, dismissed bool) *AbandonedEvent {
	return &AbandonedEvent{intentEvent: newIntentEvent(EventTypeAbandoned, i), Dismissed: dismissed}
}
