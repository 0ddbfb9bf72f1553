package checkout

import (
	"encoding/json"
	"testing"

	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLines() []cart.Line {
	return []cart.Line{
		{ProductID: 1, Name: "Phone", Price: decimal.NewFromInt(100), StockQuantity: 5, Quantity: 2},
		{ProductID: 2, Name: "Case", Price: decimal.NewFromInt(10), StockQuantity: 5, Quantity: 1},
	}
}

func TestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateViewingCart, StateValidating, true},
		{StateViewingCart, StateAwaitingPayment, false},
		{StateValidating, StateAwaitingPayment, true},
		{StateValidating, StateError, true},
		{StateAwaitingPayment, StateViewingCart, true},
		{StateAwaitingPayment, StatePlacingOrder, false},
		{StateVerifyingPayment, StatePlacingOrder, true},
		{StateVerifyingPayment, StateUpdatingStock, false},
		{StatePlacingOrder, StateUpdatingStock, true},
		{StateUpdatingStock, StateDone, true},
		{StateDone, StateValidating, true},
		{StateError, StatePlacingOrder, true},
		{StateError, StateDone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewIntent(t *testing.T) {
	lines := testLines()
	i := NewIntent(9, lines, 21000, "INR")

	assert.Equal(t, StateValidating, i.State)
	assert.NotEmpty(t, i.IdempotencyKey)
	assert.True(t, decimal.NewFromInt(210).Equal(i.Total))

	lines[0].Quantity = 99
	assert.Equal(t, 2, i.Lines[0].Quantity, "intent keeps its own snapshot")
}

func TestIntent_StepProgress(t *testing.T) {
	i := NewIntent(9, testLines(), 21000, "INR")

	step, ok := i.NextStep()
	require.True(t, ok)
	assert.Equal(t, StepVerifyPayment, step)

	i.Complete(StepVerifyPayment)
	i.Complete(StepVerifyPayment)
	assert.Equal(t, []Step{StepVerifyPayment}, i.Completed)

	step, _ = i.NextStep()
	assert.Equal(t, StepCreateOrder, step)

	i.Complete(StepCreateOrder)
	i.Complete(StepDecrementStock)
	_, ok = i.NextStep()
	assert.False(t, ok)
}

func TestIntent_RecordPayment(t *testing.T) {
	i := NewIntent(9, testLines(), 21000, "INR")
	success := WidgetOutcome{Kind: OutcomeSuccess, PaymentID: "p1", OrderID: "o1", Signature: "s1"}

	t.Run("rejected before the widget is open", func(t *testing.T) {
		err := i.RecordPayment(success)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	require.NoError(t, i.AttachSession(Session{GatewayOrderID: "o1", Amount: 21000, Currency: "INR"}))

	t.Run("rejects an incomplete callback", func(t *testing.T) {
		err := i.RecordPayment(WidgetOutcome{Kind: OutcomeSuccess, PaymentID: "p1"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("stores a complete callback", func(t *testing.T) {
		require.NoError(t, i.RecordPayment(success))
		assert.True(t, i.Paid())
		assert.Equal(t, "s1", i.Payment.Signature)
	})
}

func TestIntent_Resumable(t *testing.T) {
	i := NewIntent(9, testLines(), 21000, "INR")
	i.FailValidation("Some items exceed available stock", nil)
	assert.False(t, i.Resumable(), "unpaid intents restart instead of resuming")

	i = NewIntent(9, testLines(), 21000, "INR")
	require.NoError(t, i.AttachSession(Session{GatewayOrderID: "o1"}))
	require.NoError(t, i.RecordPayment(WidgetOutcome{Kind: OutcomeSuccess, PaymentID: "p1", OrderID: "o1", Signature: "s1"}))
	require.NoError(t, i.TransitionTo(StateVerifyingPayment))
	i.Complete(StepVerifyPayment)
	require.NoError(t, i.TransitionTo(StatePlacingOrder))
	i.Fail(StepCreateOrder, "boom")

	assert.True(t, i.Resumable())
	assert.Equal(t, StepCreateOrder, i.FailedStep)
}

func TestIntent_PendingDecrements(t *testing.T) {
	i := NewIntent(9, testLines(), 21000, "INR")
	i.MarkDecremented(1)
	i.MarkDecremented(1)

	assert.Equal(t, []int64{1}, i.Decremented)
	assert.Equal(t, []trade.StockDecrement{{ProductID: 2, Quantity: 1}}, i.PendingDecrements())
}

func TestIntent_PersistedForm(t *testing.T) {
	i := NewIntent(9, testLines(), 21000, "INR")
	i.Complete(StepVerifyPayment)

	data, err := json.Marshal(i)
	require.NoError(t, err)

	var back Intent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, i.ID, back.ID)
	assert.True(t, back.IsCompleted(StepVerifyPayment))
	assert.Len(t, back.Lines, 2)
}

func TestWidgetOutcome_Validate(t *testing.T) {
	assert.NoError(t, WidgetOutcome{Kind: OutcomeDismissed}.Validate())
	assert.Error(t, WidgetOutcome{Kind: "weird"}.Validate())
}

func TestIntent_CloneIsIndependent(t *testing.T) {
	i := NewIntent(9, []cart.Line{{ProductID: 1, Quantity: 1}}, 100, "INR")
	require.NoError(t, i.AttachSession(Session{GatewayOrderID: "o1"}))
	i.Complete(StepVerifyPayment)

	c := i.Clone()
	i.Complete(StepCreateOrder)
	i.Lines[0].Quantity = 5
	i.Session.GatewayOrderID = "o2"

	assert.Equal(t, []Step{StepVerifyPayment}, c.Completed)
	assert.Equal(t, 1, c.Lines[0].Quantity)
	assert.Equal(t, "o1", c.Session.GatewayOrderID)
}
