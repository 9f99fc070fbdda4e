package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unipay-app/unipay-backend/pkg/enums"
)

// Transaction is a ledger entry. Entries start out scheduled or pending,
// transition exactly once to completed or failed, and are immutable after
// that apart from audit metadata.
//
// SubscriptionID is a soft back-reference, not an owned foreign key:
// terminal entries must outlive subscription edits and cancellation, so the
// column is nullable and never cascade-deleted. For scheduled entries
// CreatedAt carries the billing day (start of day), not the insertion time.
type Transaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type           enums.TransactionType   `gorm:"column:type;not null"`
	Source         enums.TransactionSource `gorm:"column:source;not null"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status         enums.TransactionStatus `gorm:"column:status;not null;index"`
	Description    string                  `gorm:"column:description"`
	SubscriptionID *uuid.UUID              `gorm:"column:subscription_id;type:uuid;index"`
	CardID         *uuid.UUID              `gorm:"column:card_id;type:uuid"`
	Metadata       json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time               `gorm:"column:created_at;index"`
	CompletedAt    *time.Time              `gorm:"column:completed_at"`
}

// TransactionMetadata is the structured payload stored in the metadata
// column. The scheduled/upcoming pair is consumed by presentation-layer
// collaborators to distinguish future-dated entries from due-today ones.
type TransactionMetadata struct {
	Source         string     `json:"source,omitempty"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	CardID         *uuid.UUID `json:"card_id,omitempty"`
	BillingCycle   string     `json:"billing_cycle,omitempty"`
	Scheduled      bool       `json:"scheduled,omitempty"`
	Upcoming       bool       `json:"upcoming,omitempty"`
	Category       string     `json:"category,omitempty"`
	DisplayColor   string     `json:"display_color,omitempty"`
	ServiceName    string     `json:"service_name,omitempty"`

	ProviderSessionID string `json:"provider_session_id,omitempty"`
	PaymentIntent     string `json:"payment_intent,omitempty"`
	PaymentStatus     string `json:"payment_status,omitempty"`
}

// Marshal encodes the metadata for the jsonb column.
func (m TransactionMetadata) Marshal() (json.RawMessage, error) {
	return json.Marshal(m)
}

// ParseTransactionMetadata decodes the metadata column; a nil payload yields
// the zero value.
func ParseTransactionMetadata(raw json.RawMessage) (TransactionMetadata, error) {
	var meta TransactionMetadata
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return TransactionMetadata{}, err
	}
	return meta, nil
}

// IsTerminal reports whether the entry has reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t != nil && t.Status.IsTerminal()
}
