package repository

import (
	"context"
	"errors"
	"time"

	"billexpress/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrOptimisticLock  = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create 写入账户，ID 由存储层分配
func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 在事务内加行锁读取账户（SQLite 会忽略锁子句）
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

// ListUserIDs 返回所有拥有账户的用户，供定时对账使用
func (r *AccountRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Distinct().
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// Save 整体覆盖名称、颜色和余额，不做版本校验
func (r *AccountRepository) Save(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", account.ID).
		Updates(map[string]interface{}{
			"name":    account.Name,
			"color":   account.Color,
			"balance": account.Balance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	account.Version++
	return nil
}

// SetBalanceWithVersion 以乐观锁写入新余额，legs 累加到流水计数
// version 不匹配说明账户在读取之后被其他写入修改过
func (r *AccountRepository) SetBalanceWithVersion(ctx context.Context, tx *gorm.DB, id string, balance decimal.Decimal, legs int64, version int) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"balance":           balance,
			"transaction_count": gorm.Expr("transaction_count + ?", legs),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrOptimisticLock
	}

	return nil
}

// OverwriteBalance 无条件覆盖缓存余额，对账修正使用
func (r *AccountRepository) OverwriteBalance(ctx context.Context, tx *gorm.DB, id string, balance decimal.Decimal, verifiedAt time.Time) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance":          balance,
			"last_verified_at": verifiedAt,
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TouchVerified 只更新最近校验时间
func (r *AccountRepository) TouchVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		UpdateColumn("last_verified_at", verifiedAt).Error
}

func (r *AccountRepository) MarkDefault(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("is_default", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearDefault 取消多余的默认标记，并发初始化时可能产生两个默认账户
func (r *AccountRepository) ClearDefault(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("is_default", false).Error
}

func (r *AccountRepository) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := r.conn(tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Account{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
