package journal

import (
	"context"

	"github.com/omkarjtg/ecomm/internal/domain/checkout"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Recorder writes every checkout event's intent snapshot to the journal
type Recorder struct {
	journal Journal
	logger  *zap.Logger
}

// NewRecorder creates a Recorder
func NewRecorder(j Journal, log *zap.Logger) *Recorder {
	if j == nil {
		j = Nop{}
	}
	return &Recorder{journal: j, logger: logger.OrNop(log)}
}

// EventTypes implements shared.EventHandler
func (r *Recorder) EventTypes() []string {
	return []string{
		checkout.EventTypeStarted,
		checkout.EventTypeStepCompleted,
		checkout.EventTypeFailed,
		checkout.EventTypeCompleted,
		checkout.EventTypeAbandoned,
	}
}

// Handle implements shared.EventHandler
func (r *Recorder) Handle(ctx context.Context, e shared.DomainEvent) error {
	ev, ok := e.(checkout.IntentEvent)
	if !ok {
		return nil
	}
	snap := ev.Snapshot()
	if err := r.journal.Record(ctx, &snap); err != nil {
		return err
	}
	if needsSupport(&snap) {
		r.logger.Error("Paid checkout needs manual support",
			zap.String("intent_id", snap.ID.String()),
			zap.String("failed_step", string(snap.FailedStep)),
			zap.String("payment_id", paymentID(&snap)),
			zap.String("error", snap.LastError),
		)
	}
	return nil
}

func paymentID(i *checkout.Intent) string {
	if i.Payment == nil {
		return ""
	}
	return i.Payment.PaymentID
}

var _ shared.EventHandler = (*Recorder)(nil)
