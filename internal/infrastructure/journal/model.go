package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/omkarjtg/ecomm/internal/domain/checkout"
)

// EntryModel is one checkout attempt as kept for reconciliation
type EntryModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	IdempotencyKey string    `gorm:"type:varchar(64);not null;index"`
	UserID         int64     `gorm:"not null;index"`
	State          string    `gorm:"type:varchar(32);not null;index"`
	FailedStep     string    `gorm:"type:varchar(32)"`
	LastError      string    `gorm:"type:text"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"type:varchar(3);not null"`
	GatewayOrderID string    `gorm:"type:varchar(64);index"`
	PaymentID      string    `gorm:"type:varchar(64)"`
	OrderID        int64     `gorm:"index"`
	NeedsSupport   bool      `gorm:"not null;default:false;index"`
	Resolved       bool      `gorm:"not null;default:false"`
	Payload        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntryModel) TableName() string {
	return "checkout_journal"
}

// needsSupport reports whether a buyer may have been charged without the
// order or stock steps completing
func needsSupport(i *checkout.Intent) bool {
	return i.State == checkout.StateError && i.Paid()
}

// EntryModelFromDomain converts an intent into a journal row
func EntryModelFromDomain(i *checkout.Intent) (*EntryModel, error) {
	payload, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("journal: encode intent: %w", err)
	}
	m := &EntryModel{
		ID:             i.ID.String(),
		IdempotencyKey: i.IdempotencyKey,
		UserID:         i.UserID,
		State:          string(i.State),
		FailedStep:     string(i.FailedStep),
		LastError:      i.LastError,
		Amount:         i.Amount,
		Currency:       i.Currency,
		OrderID:        i.OrderID,
		NeedsSupport:   needsSupport(i),
		Payload:        string(payload),
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
	if i.Session != nil {
		m.GatewayOrderID = i.Session.GatewayOrderID
	}
	if i.Payment != nil {
		m.PaymentID = i.Payment.PaymentID
	}
	return m, nil
}

// ToDomain decodes the stored intent snapshot
func (m *EntryModel) ToDomain() (*checkout.Intent, error) {
	var i checkout.Intent
	if err := json.Unmarshal([]byte(m.Payload), &i); err != nil {
		return nil, fmt.Errorf("journal: decode intent %s: %w", m.ID, err)
	}
	return &i, nil
}
