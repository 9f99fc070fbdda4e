package payments

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/internal/cycle"
	"github.com/unipay-app/unipay-backend/internal/ledger"
	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/internal/subscriptions"
	"github.com/unipay-app/unipay-backend/internal/wallet"
	"github.com/unipay-app/unipay-backend/pkg/config"
	"github.com/unipay-app/unipay-backend/pkg/db"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	"github.com/unipay-app/unipay-backend/pkg/enums"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
	"github.com/unipay-app/unipay-backend/pkg/logger"
)

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Wallets       wallet.Repository
	Ledger        ledger.Repository
	Subscriptions subscriptions.Repository
	Scheduler     *scheduler.Service
	Tx            db.TxRunner
	Logger        *logger.Logger
	Topup         config.TopupConfig
	Billing       config.BillingConfig
	// Now is the clock; defaults to time.Now. Injected so rollover tests can
	// pin the payment date.
	Now func() time.Time
}

// Service finalizes payments against the wallet and drives the subscription
// billing-date rollover.
type Service struct {
	wallets       wallet.Repository
	ledger        ledger.Repository
	subscriptions subscriptions.Repository
	scheduler     *scheduler.Service
	tx            db.TxRunner
	logger        *logger.Logger
	topupMin      decimal.Decimal
	topupMax      decimal.Decimal
	horizon       time.Duration
	now           func() time.Time
}

// CompletionResult reports what ProcessPaymentCompletion did.
type CompletionResult struct {
	// Transaction is the finalized (or already-final) ledger entry.
	Transaction *models.Transaction
	// NextScheduled is the follow-up scheduled entry created or found during
	// rollover; nil for non-subscription payments and no-op calls.
	NextScheduled *models.Transaction
	// AlreadyFinal marks an at-least-once redelivery: nothing was mutated.
	AlreadyFinal bool
}

// NewService builds a payments service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Wallets == nil {
		return nil, stdErrors.New("wallet repository is required")
	}
	if params.Ledger == nil {
		return nil, stdErrors.New("ledger repository is required")
	}
	if params.Subscriptions == nil {
		return nil, stdErrors.New("subscriptions repository is required")
	}
	if params.Scheduler == nil {
		return nil, stdErrors.New("scheduler service is required")
	}
	if params.Tx == nil {
		return nil, stdErrors.New("tx runner is required")
	}

	topupMin, err := decimal.NewFromString(params.Topup.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("parsing top-up min amount: %w", err)
	}
	topupMax, err := decimal.NewFromString(params.Topup.MaxAmount)
	if err != nil {
		return nil, fmt.Errorf("parsing top-up max amount: %w", err)
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		wallets:       params.Wallets,
		ledger:        params.Ledger,
		subscriptions: params.Subscriptions,
		scheduler:     params.Scheduler,
		tx:            params.Tx,
		logger:        params.Logger,
		topupMin:      topupMin,
		topupMax:      topupMax,
		horizon:       params.Billing.Horizon(),
		now:           now,
	}, nil
}

// ProcessPaymentCompletion finalizes a pending or scheduled payment: it
// debits the wallet, marks the entry completed, and for subscription payments
// advances the subscription's billing dates and schedules the next payment in
// the same transaction. Redelivering a completed or failed transaction id is
// a no-op success so the provider can retry safely.
//
// INSUFFICIENT_FUNDS aborts the whole transaction: the entry stays
// non-terminal and the balance is untouched.
func (s *Service) ProcessPaymentCompletion(ctx context.Context, transactionID uuid.UUID) (*CompletionResult, error) {
	txn, err := s.ledger.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		return &CompletionResult{Transaction: txn, AlreadyFinal: true}, nil
	}

	result := &CompletionResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledger.WithTx(tx)

		locked, err := ledgerRepo.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if locked.IsTerminal() {
			result.Transaction = locked
			result.AlreadyFinal = true
			return nil
		}

		completedAt := s.now().UTC()

		if _, err := s.wallets.WithTx(tx).AdjustBalance(ctx, locked.UserID, locked.Amount.Neg()); err != nil {
			return err
		}
		if err := ledgerRepo.MarkCompleted(ctx, locked, completedAt); err != nil {
			return err
		}
		result.Transaction = locked

		if locked.Type != enums.TransactionTypeSubscriptionPayment {
			return nil
		}

		subID := resolveSubscriptionID(locked)
		if subID == nil {
			return nil
		}

		next, err := s.rollover(ctx, tx, *subID, completedAt)
		if err != nil {
			return err
		}
		result.NextScheduled = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil && !result.AlreadyFinal {
		ctx = s.logger.WithField(ctx, "transaction_id", transactionID.String())
		s.logger.Info(ctx, "payment completed")
	}
	return result, nil
}

// FailPayment marks a scheduled or pending payment failed after the provider
// declined the charge. The wallet is untouched and billing dates stay put, so
// the failed entry stands in the ledger and the next sweep schedules a fresh
// attempt. Redelivering a terminal transaction id is a no-op success.
func (s *Service) FailPayment(ctx context.Context, transactionID uuid.UUID) (*CompletionResult, error) {
	txn, err := s.ledger.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		return &CompletionResult{Transaction: txn, AlreadyFinal: true}, nil
	}

	result := &CompletionResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledger.WithTx(tx)

		locked, err := ledgerRepo.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if locked.IsTerminal() {
			result.Transaction = locked
			result.AlreadyFinal = true
			return nil
		}

		if err := ledgerRepo.MarkFailed(ctx, locked); err != nil {
			return err
		}
		result.Transaction = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil && !result.AlreadyFinal {
		ctx = s.logger.WithField(ctx, "transaction_id", transactionID.String())
		s.logger.Warn(ctx, "payment failed")
	}
	return result, nil
}

// rollover advances the subscription's billing dates past the payment and
// keeps the next payment scheduled. An orphaned subscription reference is
// tolerated: the payment stays completed, there is just nothing to advance.
func (s *Service) rollover(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID, completedAt time.Time) (*models.Transaction, error) {
	subRepo := s.subscriptions.WithTx(tx)

	sub, err := subRepo.FindByIDForUpdate(ctx, subscriptionID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	paymentDate := cycle.StartOfDay(completedAt)
	nextDate, err := cycle.NextDate(sub.BillingCycle, paymentDate)
	if err != nil {
		return nil, err
	}

	if err := subRepo.UpdateBillingDates(ctx, sub, paymentDate, nextDate); err != nil {
		return nil, err
	}

	if !sub.Schedulable() {
		return nil, nil
	}

	horizon := s.now().UTC().Add(s.horizon)
	next, _, err := s.scheduler.EnsureNextPayment(ctx, tx, sub, horizon)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// CreditWallet records a confirmed provider top-up: the wallet is credited
// and a completed topup entry carrying the provider references is inserted,
// both in one transaction.
func (s *Service) CreditWallet(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, meta models.TransactionMetadata) (*models.Transaction, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amount.LessThan(s.topupMin) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum top-up amount is %s", s.topupMin.StringFixed(2)))
	}
	if amount.GreaterThan(s.topupMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("maximum top-up amount is %s", s.topupMax.StringFixed(2)))
	}

	rawMeta, err := meta.Marshal()
	if err != nil {
		return nil, err
	}

	completedAt := s.now().UTC()
	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        enums.TransactionTypeTopup,
		Source:      enums.TransactionSourceProvider,
		Amount:      amount,
		Status:      enums.TransactionStatusCompleted,
		Description: "Wallet top-up",
		Metadata:    rawMeta,
		CreatedAt:   completedAt,
		CompletedAt: &completedAt,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.wallets.WithTx(tx).AdjustBalance(ctx, userID, amount); err != nil {
			return err
		}
		return s.ledger.WithTx(tx).Create(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"amount":  amount.StringFixed(2),
		})
		s.logger.Info(ctx, "wallet topped up")
	}
	return txn, nil
}

// resolveSubscriptionID prefers the dedicated column; legacy rows only carry
// the id inside the metadata payload.
func resolveSubscriptionID(txn *models.Transaction) *uuid.UUID {
	if txn.SubscriptionID != nil {
		return txn.SubscriptionID
	}
	meta, err := models.ParseTransactionMetadata(txn.Metadata)
	if err != nil || meta.SubscriptionID == nil {
		return nil
	}
	return meta.SubscriptionID
}
