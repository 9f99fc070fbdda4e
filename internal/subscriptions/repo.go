package subscriptions

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/internal/repo"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

// Repository manages persistence for recurring subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	// FindByIDForUpdate acquires a row lock on the subscription for the
	// billing-date rollover. Callers must hold an open database transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListActiveAutoRenew(ctx context.Context) ([]models.Subscription, error)
	// UpdateBillingDates advances last_payment_date/next_billing_date with an
	// optimistic guard on updated_at. Zero rows matched means another writer
	// advanced the row first and surfaces as CONCURRENCY_CONFLICT.
	UpdateBillingDates(ctx context.Context, sub *models.Subscription, lastPayment, nextBilling time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.findByID(repo.ForUpdate(r.db.WithContext(ctx)), id)
}

func (r *repository) findByID(db *gorm.DB, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := db.Where("id = ?", id).First(&sub).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListActiveAutoRenew(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND auto_renew = ?", true, true).
		Order("next_billing_date ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) UpdateBillingDates(ctx context.Context, sub *models.Subscription, lastPayment, nextBilling time.Time) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND updated_at = ?", sub.ID, sub.UpdatedAt).
		Updates(map[string]any{
			"last_payment_date": lastPayment,
			"next_billing_date": nextBilling,
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "subscription was updated concurrently")
	}
	sub.LastPaymentDate = &lastPayment
	sub.NextBillingDate = &nextBilling
	sub.UpdatedAt = now
	return nil
}
