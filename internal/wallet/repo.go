package wallet

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/unipay-app/unipay-backend/internal/repo"
	"github.com/unipay-app/unipay-backend/pkg/db/models"
	pkgerrors "github.com/unipay-app/unipay-backend/pkg/errors"
)

// Repository manages persistence for user wallets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// FindByUserIDForUpdate acquires a row lock on the wallet. Callers must
	// hold an open transaction; the lock is released on commit/rollback.
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// AdjustBalance applies a signed delta under the row lock. Negative
	// deltas that would take the balance below zero fail with
	// INSUFFICIENT_FUNDS and leave the row untouched.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (*models.Wallet, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := repo.ForUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (*models.Wallet, error) {
	wallet, err := r.FindByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := wallet.Balance.Add(delta)
	if next.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance insufficient").
			WithDetails(map[string]string{
				"balance":  wallet.Balance.StringFixed(2),
				"required": delta.Neg().StringFixed(2),
			})
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", next).Error; err != nil {
		return nil, err
	}

	wallet.Balance = next
	return wallet, nil
}
