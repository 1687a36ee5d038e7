package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace-backend/models"
)

// WalletRepository mutates balances only through relative deltas; callers
// are expected to hold the row lock (GetForUpdate) inside a transaction
// before applying one.
type WalletRepository interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	Create(ctx context.Context, wallet *models.Wallet) error
	ApplyDelta(ctx context.Context, accountID uuid.UUID, availableDelta, pendingDelta, totalDelta int64) error
}

type LedgerRepository interface {
	Create(ctx context.Context, tx *models.LedgerTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID, page, limit int) ([]models.LedgerTransaction, int64, error)
	// CountByOrderID backs the settlement cross-check that an unpaid order
	// carries no ledger rows.
	CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type PayoutRepository interface {
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByLedgerTxID(ctx context.Context, ledgerTxID uuid.UUID) (*models.Payout, error)
	FindByStatus(ctx context.Context, status string, page, limit int) ([]models.Payout, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, approverID *uuid.UUID, rejectReason *string) error
}

type GormWalletRepository struct {
	db *gorm.DB
}

func NewGormWalletRepository(db *gorm.DB) WalletRepository {
	return &GormWalletRepository{db: db}
}

func (r *GormWalletRepository) Get(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "account_id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *GormWalletRepository) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "account_id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *GormWalletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *GormWalletRepository) ApplyDelta(ctx context.Context, accountID uuid.UUID, availableDelta, pendingDelta, totalDelta int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"available": gorm.Expr("available + ?", availableDelta),
			"pending":   gorm.Expr("pending + ?", pendingDelta),
			"total":     gorm.Expr("total + ?", totalDelta),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type GormLedgerRepository struct {
	db *gorm.DB
}

func NewGormLedgerRepository(db *gorm.DB) LedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) Create(ctx context.Context, tx *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	var tx models.LedgerTransaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *GormLedgerRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID, page, limit int) ([]models.LedgerTransaction, int64, error) {
	var txs []models.LedgerTransaction
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Where("account_id = ? OR counterparty_id = ?", accountID, accountID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}

	return txs, total, nil
}

func (r *GormLedgerRepository) CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

// UpdateStatus is the only mutation the ledger allows; amount and parties
// stay fixed.
func (r *GormLedgerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

type GormPayoutRepository struct {
	db *gorm.DB
}

func NewGormPayoutRepository(db *gorm.DB) PayoutRepository {
	return &GormPayoutRepository{db: db}
}

func (r *GormPayoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *GormPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *GormPayoutRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *GormPayoutRepository) FindByLedgerTxID(ctx context.Context, ledgerTxID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "ledger_tx_id = ?", ledgerTxID).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *GormPayoutRepository) FindByStatus(ctx context.Context, status string, page, limit int) ([]models.Payout, int64, error) {
	var payouts []models.Payout
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		return nil, 0, err
	}

	return payouts, total, nil
}

func (r *GormPayoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, approverID *uuid.UUID, rejectReason *string) error {
	updates := map[string]interface{}{"status": status}
	if approverID != nil {
		updates["approver_id"] = approverID
	}
	if rejectReason != nil {
		updates["reject_reason"] = rejectReason
	}
	return r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Updates(updates).Error
}
