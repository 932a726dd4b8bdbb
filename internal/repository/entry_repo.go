package repository

import (
	"context"
	"errors"

	"billexpress/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEntryNotFound = errors.New("收支记录不存在")

// EntryRepository 收入与支出事件的读写
type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *EntryRepository) CreateIncome(ctx context.Context, tx *gorm.DB, income *model.Income) error {
	if income.ID == "" {
		income.ID = uuid.NewString()
	}
	return r.conn(tx).WithContext(ctx).Create(income).Error
}

func (r *EntryRepository) CreateExpense(ctx context.Context, tx *gorm.DB, expense *model.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	return r.conn(tx).WithContext(ctx).Create(expense).Error
}

func (r *EntryRepository) GetIncome(ctx context.Context, tx *gorm.DB, id string) (*model.Income, error) {
	var income model.Income
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&income).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &income, nil
}

func (r *EntryRepository) GetExpense(ctx context.Context, tx *gorm.DB, id string) (*model.Expense, error) {
	var expense model.Expense
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&expense).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &expense, nil
}

// ListIncomesByAccount 对账时扫描账户的全部收入
func (r *EntryRepository) ListIncomesByAccount(ctx context.Context, userID, accountID string) ([]*model.Income, error) {
	var incomes []*model.Income
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND account_id = ?", userID, accountID).
		Find(&incomes).Error
	return incomes, err
}

func (r *EntryRepository) ListExpensesByAccount(ctx context.Context, userID, accountID string) ([]*model.Expense, error) {
	var expenses []*model.Expense
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND account_id = ?", userID, accountID).
		Find(&expenses).Error
	return expenses, err
}

func (r *EntryRepository) ListIncomesByUser(ctx context.Context, userID string) ([]*model.Income, error) {
	var incomes []*model.Income
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&incomes).Error
	return incomes, err
}

func (r *EntryRepository) ListExpensesByUser(ctx context.Context, userID string) ([]*model.Expense, error) {
	var expenses []*model.Expense
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&expenses).Error
	return expenses, err
}

func (r *EntryRepository) DeleteIncome(ctx context.Context, tx *gorm.DB, id string) error {
	return r.conn(tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Income{}).Error
}

func (r *EntryRepository) DeleteExpense(ctx context.Context, tx *gorm.DB, id string) error {
	return r.conn(tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Expense{}).Error
}

// DeleteByAccount 级联删除账户下的收入和支出，转账记录保留
func (r *EntryRepository) DeleteByAccount(ctx context.Context, tx *gorm.DB, userID, accountID string) (int64, error) {
	db := r.conn(tx).WithContext(ctx)

	incomes := db.Where("user_id = ? AND account_id = ?", userID, accountID).Delete(&model.Income{})
	if incomes.Error != nil {
		return 0, incomes.Error
	}

	expenses := db.Where("user_id = ? AND account_id = ?", userID, accountID).Delete(&model.Expense{})
	if expenses.Error != nil {
		return incomes.RowsAffected, expenses.Error
	}

	return incomes.RowsAffected + expenses.RowsAffected, nil
}
