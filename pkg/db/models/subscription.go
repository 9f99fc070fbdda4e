package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unipay-app/unipay-backend/pkg/enums"
)

// Subscription is a recurring obligation charged against a budget card.
// While IsActive && AutoRenew holds, NextBillingDate is either nil (not yet
// initialized) or on/after LastPaymentDate. Cancellation is soft: IsActive is
// flipped off and CancelledAt stamped; rows are never deleted while ledger
// entries still reference them.
type Subscription struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	CardID          uuid.UUID          `gorm:"column:card_id;type:uuid;not null;index"`
	ServiceName     string             `gorm:"column:service_name;not null"`
	ServiceCategory string             `gorm:"column:service_category"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string             `gorm:"column:currency;not null;default:'USD'"`
	BillingCycle    enums.BillingCycle `gorm:"column:billing_cycle;not null;default:'monthly'"`
	NextBillingDate *time.Time         `gorm:"column:next_billing_date;type:date"`
	LastPaymentDate *time.Time         `gorm:"column:last_payment_date;type:date"`
	// No default tags on the flags: GORM omits false fields carrying a
	// default, letting the column default resurrect cancelled rows on save.
	// The migration supplies the column defaults for raw inserts.
	IsActive        bool               `gorm:"column:is_active;not null"`
	AutoRenew       bool               `gorm:"column:auto_renew;not null"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	CancelledAt     *time.Time         `gorm:"column:cancelled_at"`
}

// Schedulable reports whether the scheduler should consider this subscription
// at all. A nil NextBillingDate still needs initialization by the domain layer
// and is counted as skipped, not errored.
func (s *Subscription) Schedulable() bool {
	return s != nil && s.IsActive && s.AutoRenew
}

// Cancel soft-deletes the subscription. Both scheduling operations become
// permanent no-ops afterwards.
func (s *Subscription) Cancel(at time.Time) {
	s.IsActive = false
	s.AutoRenew = false
	s.CancelledAt = &at
}
