package repository

import (
	"context"

	"billexpress/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *gorm.DB, transfer *model.Transfer) error {
	if tx == nil {
		tx = r.db
	}
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

// ListByUserID 按时间倒序返回用户的转账记录
func (r *TransferRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Transfer, error) {
	var transfers []*model.Transfer
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&transfers).Error
	return transfers, err
}

// ListIncoming 账户作为转入方的转账
func (r *TransferRepository) ListIncoming(ctx context.Context, userID, accountID string) ([]*model.Transfer, error) {
	var transfers []*model.Transfer
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND to_account_id = ?", userID, accountID).
		Find(&transfers).Error
	return transfers, err
}

// ListOutgoing 账户作为转出方的转账
func (r *TransferRepository) ListOutgoing(ctx context.Context, userID, accountID string) ([]*model.Transfer, error) {
	var transfers []*model.Transfer
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND from_account_id = ?", userID, accountID).
		Find(&transfers).Error
	return transfers, err
}

func (r *TransferRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Transfer{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}
