package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/model"
	"billexpress/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EntryService 记录和撤销收入、支出
// 每次写入事件都在同一事务中调整账户缓存余额
type EntryService struct {
	db          *gorm.DB
	cfg         *config.Config
	mirror      AccountMirror
	log         *logrus.Entry
	accountRepo *repository.AccountRepository
	entryRepo   *repository.EntryRepository
}

func NewEntryService(db *gorm.DB, mirror AccountMirror, cfg *config.Config, log *logrus.Logger) *EntryService {
	return &EntryService{
		db:          db,
		cfg:         cfg,
		mirror:      orNop(mirror),
		log:         log.WithField("component", "entry_service"),
		accountRepo: repository.NewAccountRepository(db),
		entryRepo:   repository.NewEntryRepository(db),
	}
}

type EntryRequest struct {
	AccountID   string
	UserID      string
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        time.Time
}

func (r *EntryRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: 缺少 userId", ErrValidation)
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return fmt.Errorf("%w: 缺少 accountId", ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (r *EntryRequest) date() time.Time {
	if r.Date.IsZero() {
		return time.Now()
	}
	return r.Date
}

func (s *EntryService) RecordIncome(ctx context.Context, req *EntryRequest) (*model.Income, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	income := &model.Income{
		AccountID:   req.AccountID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.date(),
	}
	err := s.apply(ctx, req.AccountID, req.UserID, req.Amount, func(tx *gorm.DB) error {
		return s.entryRepo.CreateIncome(ctx, tx, income)
	})
	if err != nil {
		return nil, err
	}
	return income, nil
}

func (s *EntryService) RecordExpense(ctx context.Context, req *EntryRequest) (*model.Expense, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	expense := &model.Expense{
		AccountID:   req.AccountID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.date(),
	}
	err := s.apply(ctx, req.AccountID, req.UserID, req.Amount.Neg(), func(tx *gorm.DB) error {
		return s.entryRepo.CreateExpense(ctx, tx, expense)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteIncome 删除收入并从账户余额中扣回
// 账户已被删除时只删除记录
func (s *EntryService) DeleteIncome(ctx context.Context, id, userID string) error {
	income, err := s.entryRepo.GetIncome(ctx, nil, id)
	if err != nil {
		return translateRepoErr("查询收入失败", err)
	}
	if income.UserID != userID {
		return ErrForbidden
	}
	return s.revert(ctx, income.AccountID, userID, income.Amount.Neg(), func(tx *gorm.DB) error {
		return s.entryRepo.DeleteIncome(ctx, tx, id)
	})
}

// DeleteExpense 删除支出并把金额加回账户余额
func (s *EntryService) DeleteExpense(ctx context.Context, id, userID string) error {
	expense, err := s.entryRepo.GetExpense(ctx, nil, id)
	if err != nil {
		return translateRepoErr("查询支出失败", err)
	}
	if expense.UserID != userID {
		return ErrForbidden
	}
	return s.revert(ctx, expense.AccountID, userID, expense.Amount, func(tx *gorm.DB) error {
		return s.entryRepo.DeleteExpense(ctx, tx, id)
	})
}

func (s *EntryService) ListIncomes(ctx context.Context, userID string) ([]*model.Income, error) {
	incomes, err := s.entryRepo.ListIncomesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询收入失败: %w", err)
	}
	return incomes, nil
}

func (s *EntryService) ListExpenses(ctx context.Context, userID string) ([]*model.Expense, error) {
	expenses, err := s.entryRepo.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询支出失败: %w", err)
	}
	return expenses, nil
}

// apply 写入事件并按 delta 调整账户余额，账户必须存在且属于 userID
func (s *EntryService) apply(ctx context.Context, accountID, userID string, delta decimal.Decimal, write func(tx *gorm.DB) error) error {
	var account *model.Account
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return translateRepoErr("查询账户失败", err)
		}
		if !account.OwnedBy(userID) {
			return ErrForbidden
		}
		if err := write(tx); err != nil {
			return fmt.Errorf("写入流水失败: %w", err)
		}
		return s.adjust(ctx, tx, account, delta)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"account_id": accountID,
		"delta":      delta.String(),
	}).Info("收支已记录")
	pushMirror(ctx, s.mirror, s.log, account)
	return nil
}

// revert 删除事件；账户仍存在时反向调整余额
func (s *EntryService) revert(ctx context.Context, accountID, userID string, delta decimal.Decimal, remove func(tx *gorm.DB) error) error {
	var account *model.Account
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := remove(tx); err != nil {
			return fmt.Errorf("删除流水失败: %w", err)
		}

		var err error
		account, err = s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				account = nil
				return nil
			}
			return fmt.Errorf("查询账户失败: %w", err)
		}
		if !account.OwnedBy(userID) {
			return ErrForbidden
		}
		return s.adjust(ctx, tx, account, delta)
	})
	if err != nil {
		return err
	}

	if account != nil {
		pushMirror(ctx, s.mirror, s.log, account)
	}
	return nil
}

func (s *EntryService) adjust(ctx context.Context, tx *gorm.DB, account *model.Account, delta decimal.Decimal) error {
	balance := account.Balance.Add(delta)
	if err := s.accountRepo.SetBalanceWithVersion(ctx, tx, account.ID, balance, 0, account.Version); err != nil {
		return translateRepoErr("更新余额失败", err)
	}
	account.Balance = balance
	account.Version++
	return nil
}
