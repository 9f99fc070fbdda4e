package scheduler

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/internal/cycle"
	"github.com/unipay-app/unipay-backend/internal/ledger"
	"github.com/unipay-app/unipay-backend/internal/subscriptions"
	"github.com/unipay-app/unipay-backend/pkg/db"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	"github.com/unipay-app/unipay-backend/pkg/enums"
)

// Display metadata stamped on every scheduled entry.
const (
	metadataSource   = "SUBSCRIPTION_PAYMENT"
	fallbackCategory = "subscription"
	displayColor     = "#FACC15"
)

// scheduledUniqueIndex backstops the check-and-insert; one open scheduled
// entry per subscription.
const scheduledUniqueIndex = "uniq_scheduled_subscription"

// ServiceParams groups dependencies for the scheduler service.
type ServiceParams struct {
	Subscriptions subscriptions.Repository
	Ledger        ledger.Repository
	Tx            db.TxRunner
}

// Service keeps every active subscription's next payment scheduled within a
// horizon. It owns the scheduled-transaction check-and-insert; wallet
// balances are never touched here.
type Service struct {
	subscriptions subscriptions.Repository
	ledger        ledger.Repository
	tx            db.TxRunner
}

// SyncResult reports the outcome of one full sweep.
type SyncResult struct {
	Synced      int `json:"synced"`
	Skipped     int `json:"skipped"`
	Created     int `json:"created"`
	TotalActive int `json:"total_active"`
}

// NewService builds a scheduler service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, stdErrors.New("subscriptions repository is required")
	}
	if params.Ledger == nil {
		return nil, stdErrors.New("ledger repository is required")
	}
	if params.Tx == nil {
		return nil, stdErrors.New("tx runner is required")
	}
	return &Service{
		subscriptions: params.Subscriptions,
		ledger:        params.Ledger,
		tx:            params.Tx,
	}, nil
}

// EnsureNextPayment makes sure the subscription has exactly one open
// scheduled entry for its next billing date. It returns the existing or newly
// created entry plus whether an insert happened, and (nil, false, nil) when
// nothing is due: inactive or non-renewing subscription, uninitialized next
// billing date, or a billing date beyond the horizon.
//
// The check-and-insert is racy on its own; callers run it while holding the
// subscription row lock, with the partial unique index on open scheduled
// entries as the storage-level backstop. A unique violation therefore means
// another writer won and the existing entry is fetched and returned.
func (s *Service) EnsureNextPayment(ctx context.Context, tx *gorm.DB, sub *models.Subscription, horizonDate time.Time) (*models.Transaction, bool, error) {
	if !sub.Schedulable() || sub.NextBillingDate == nil {
		return nil, false, nil
	}

	billingDay := cycle.StartOfDay(*sub.NextBillingDate)
	if billingDay.After(cycle.StartOfDay(horizonDate)) {
		return nil, false, nil
	}

	ledgerRepo := s.ledger.WithTx(tx)

	existing, err := ledgerRepo.FindScheduledForSubscription(ctx, sub.ID, billingDay)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	entry, err := buildScheduledEntry(sub, billingDay)
	if err != nil {
		return nil, false, err
	}

	if err := ledgerRepo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, scheduledUniqueIndex) {
			// The index conflicts on any open entry regardless of its date, so
			// the re-query must not carry the billing-day bound.
			winner, findErr := ledgerRepo.FindScheduledForSubscription(ctx, sub.ID, time.Time{})
			if findErr != nil {
				return nil, false, findErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	return entry, true, nil
}

// SyncAllActive sweeps every active auto-renewing subscription and schedules
// missing payments up to horizonDate. The whole sweep runs in one
// transaction: any persistence failure rolls everything back and the next
// sweep starts from scratch. Subscriptions without a next billing date are
// counted as skipped, never treated as errors.
func (s *Service) SyncAllActive(ctx context.Context, horizonDate time.Time) (SyncResult, error) {
	var result SyncResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		subs, err := s.subscriptions.WithTx(tx).ListActiveAutoRenew(ctx)
		if err != nil {
			return err
		}
		result.TotalActive = len(subs)

		for i := range subs {
			sub := &subs[i]
			if sub.NextBillingDate == nil {
				result.Skipped++
				continue
			}

			entry, created, err := s.EnsureNextPayment(ctx, tx, sub, horizonDate)
			if err != nil {
				return err
			}
			if entry != nil {
				result.Synced++
				if created {
					result.Created++
				}
			}
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}

	return result, nil
}

func buildScheduledEntry(sub *models.Subscription, billingDay time.Time) (*models.Transaction, error) {
	category := sub.ServiceCategory
	if category == "" {
		category = fallbackCategory
	}

	subID := sub.ID
	cardID := sub.CardID
	meta, err := models.TransactionMetadata{
		Source:         metadataSource,
		SubscriptionID: &subID,
		CardID:         &cardID,
		BillingCycle:   sub.BillingCycle.String(),
		Scheduled:      true,
		Upcoming:       true,
		Category:       category,
		DisplayColor:   displayColor,
		ServiceName:    sub.ServiceName,
	}.Marshal()
	if err != nil {
		return nil, err
	}

	return &models.Transaction{
		ID:             uuid.New(),
		UserID:         sub.UserID,
		Type:           enums.TransactionTypeSubscriptionPayment,
		Source:         enums.TransactionSourceBudgetCard,
		Amount:         sub.Amount,
		Status:         enums.TransactionStatusScheduled,
		Description:    fmt.Sprintf("%s - %s subscription", sub.ServiceName, sub.BillingCycle),
		SubscriptionID: &subID,
		CardID:         &cardID,
		Metadata:       meta,
		CreatedAt:      billingDay,
	}, nil
}
