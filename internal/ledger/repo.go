package ledger

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/internal/repo"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	"github.com/unipay-app/unipay-backend/pkg/enums"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

// Repository manages persistence for ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// FindByIDForUpdate acquires a row lock on the transaction. Callers must
	// hold an open database transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// FindScheduledForSubscription returns the open scheduled entry for the
	// subscription dated on or after since, or nil when none exists. A zero
	// since matches any date.
	FindScheduledForSubscription(ctx context.Context, subscriptionID uuid.UUID, since time.Time) (*models.Transaction, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	// MarkCompleted finalizes a non-terminal entry. Zero rows matched means
	// the entry was already finalized and surfaces as STATE_CONFLICT.
	MarkCompleted(ctx context.Context, txn *models.Transaction, completedAt time.Time) error
	MarkFailed(ctx context.Context, txn *models.Transaction) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.findByID(repo.ForUpdate(r.db.WithContext(ctx)), id)
}

func (r *repository) findByID(db *gorm.DB, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := db.Where("id = ?", id).First(&txn).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindScheduledForSubscription(ctx context.Context, subscriptionID uuid.UUID, since time.Time) (*models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subscriptionID, enums.TransactionStatusScheduled)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	var txn models.Transaction
	err := query.Order("created_at ASC").First(&txn).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) MarkCompleted(ctx context.Context, txn *models.Transaction, completedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status IN ?", txn.ID, openStatuses()).
		Updates(map[string]any{
			"status":       enums.TransactionStatusCompleted,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already finalized")
	}
	txn.Status = enums.TransactionStatusCompleted
	txn.CompletedAt = &completedAt
	return nil
}

func (r *repository) MarkFailed(ctx context.Context, txn *models.Transaction) error {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status IN ?", txn.ID, openStatuses()).
		Update("status", enums.TransactionStatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already finalized")
	}
	txn.Status = enums.TransactionStatusFailed
	return nil
}

func openStatuses() []enums.TransactionStatus {
	return []enums.TransactionStatus{
		enums.TransactionStatusScheduled,
		enums.TransactionStatusPending,
	}
}
