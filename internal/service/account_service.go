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

const openingBalanceCategory = "saldo_inicial"

// AccountSet GetAccounts 的结果
// Synthetic 为 true 时 Accounts 只包含一个未持久化的默认账户，Cause 记录降级原因
type AccountSet struct {
	Accounts  []*model.Account
	Synthetic bool
	Cause     error
}

// Default 返回集合中的默认账户
func (s *AccountSet) Default() *model.Account {
	for _, a := range s.Accounts {
		if a.IsDefault {
			return a
		}
	}
	return nil
}

type AccountService struct {
	db          *gorm.DB
	cfg         *config.Config
	mirror      AccountMirror
	log         *logrus.Entry
	accountRepo *repository.AccountRepository
	entryRepo   *repository.EntryRepository
	outboxRepo  *repository.OutboxRepository
}

func NewAccountService(db *gorm.DB, mirror AccountMirror, cfg *config.Config, log *logrus.Logger) *AccountService {
	return &AccountService{
		db:          db,
		cfg:         cfg,
		mirror:      orNop(mirror),
		log:         log.WithField("component", "account_service"),
		accountRepo: repository.NewAccountRepository(db),
		entryRepo:   repository.NewEntryRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// GetAccounts 返回用户的全部账户，保证恰好一个默认账户
//
// 用户没有账户时创建默认账户；有账户但没有默认账户时把第一个提升为默认。
// 存储不可用时降级为一个未持久化的合成默认账户，界面不会因为空列表崩溃。
func (s *AccountService) GetAccounts(ctx context.Context, userID string) *AccountSet {
	if strings.TrimSpace(userID) == "" {
		return s.synthetic(userID, fmt.Errorf("%w: 缺少 userId", ErrValidation))
	}

	stored, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("查询账户失败，返回合成默认账户")
		return s.synthetic(userID, err)
	}

	// 查询已按 user_id 过滤，这里再过滤一次防止跨租户泄露
	accounts := make([]*model.Account, 0, len(stored))
	for _, a := range stored {
		if a.OwnedBy(userID) {
			accounts = append(accounts, a)
		}
	}

	if len(accounts) == 0 {
		account, err := s.createDefault(ctx, userID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Error("创建默认账户失败，返回合成默认账户")
			return s.synthetic(userID, err)
		}
		return &AccountSet{Accounts: []*model.Account{account}}
	}

	s.normalizeDefault(ctx, userID, accounts)
	return &AccountSet{Accounts: accounts}
}

// normalizeDefault 保证列表中恰好一个默认账户，持久化失败只记日志
func (s *AccountService) normalizeDefault(ctx context.Context, userID string, accounts []*model.Account) {
	var defaultAccount *model.Account
	for _, a := range accounts {
		if !a.IsDefault {
			continue
		}
		if defaultAccount == nil {
			defaultAccount = a
			continue
		}
		a.IsDefault = false
		if err := s.accountRepo.ClearDefault(ctx, a.ID); err != nil {
			s.log.WithError(err).WithField("account_id", a.ID).Warn("清除多余默认标记失败")
		}
		pushMirror(ctx, s.mirror, s.log, a)
	}

	if defaultAccount != nil {
		return
	}

	first := accounts[0]
	first.IsDefault = true
	if err := s.accountRepo.MarkDefault(ctx, first.ID); err != nil {
		s.log.WithError(err).WithField("account_id", first.ID).Warn("提升默认账户失败")
	} else {
		s.log.WithFields(logrus.Fields{"user_id": userID, "account_id": first.ID}).Info("已将第一个账户提升为默认账户")
	}
	pushMirror(ctx, s.mirror, s.log, first)
}

func (s *AccountService) createDefault(ctx context.Context, userID string) (*model.Account, error) {
	account := &model.Account{
		UserID:    userID,
		Name:      s.cfg.Business.DefaultAccountName,
		Color:     s.cfg.Business.DefaultAccountColor,
		Balance:   decimal.Zero,
		IsDefault: true,
	}
	if err := s.accountRepo.Create(ctx, nil, account); err != nil {
		return nil, fmt.Errorf("创建默认账户失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "account_id": account.ID}).Info("已创建默认账户")
	pushMirror(ctx, s.mirror, s.log, account)
	return account, nil
}

func (s *AccountService) synthetic(userID string, cause error) *AccountSet {
	return &AccountSet{
		Accounts: []*model.Account{{
			UserID:    userID,
			Name:      s.cfg.Business.DefaultAccountName,
			Color:     s.cfg.Business.DefaultAccountColor,
			Balance:   decimal.Zero,
			IsDefault: true,
		}},
		Synthetic: true,
		Cause:     cause,
	}
}

// GetAccount 按 ID 查询并校验归属
func (s *AccountService) GetAccount(ctx context.Context, id, userID string) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, translateRepoErr("查询账户失败", err)
	}
	if !account.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	return account, nil
}

// CreateAccount 创建账户
//
// 草稿中的初始余额以一笔“期初”收入记入流水，和账户在同一事务中提交，
// 这样缓存余额从一开始就与事件流水一致。
func (s *AccountService) CreateAccount(ctx context.Context, draft *model.Account) (*model.Account, error) {
	if draft == nil || strings.TrimSpace(draft.UserID) == "" {
		return nil, fmt.Errorf("%w: 缺少 userId", ErrValidation)
	}

	account := &model.Account{
		UserID:    draft.UserID,
		Name:      draft.Name,
		Color:     draft.Color,
		Balance:   draft.Balance,
		IsDefault: draft.IsDefault,
	}

	if account.IsDefault {
		existing, err := s.accountRepo.ListByUserID(ctx, account.UserID)
		if err != nil {
			return nil, fmt.Errorf("查询账户失败: %w", err)
		}
		for _, a := range existing {
			if a.IsDefault {
				account.IsDefault = false
				break
			}
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		if account.Balance.IsZero() {
			return nil
		}

		now := time.Now()
		if account.Balance.IsNegative() {
			return s.entryRepo.CreateExpense(ctx, tx, &model.Expense{
				AccountID:   account.ID,
				UserID:      account.UserID,
				Amount:      account.Balance.Neg(),
				Category:    openingBalanceCategory,
				Description: "Saldo inicial",
				Date:        now,
			})
		}
		return s.entryRepo.CreateIncome(ctx, tx, &model.Income{
			AccountID:   account.ID,
			UserID:      account.UserID,
			Amount:      account.Balance,
			Category:    openingBalanceCategory,
			Description: "Saldo inicial",
			Date:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    account.UserID,
		"account_id": account.ID,
		"balance":    account.Balance.String(),
	}).Info("账户已创建")
	pushMirror(ctx, s.mirror, s.log, account)
	return account, nil
}

// UpdateAccount 修改名称、颜色和余额
// 默认账户不允许编辑，此时静默返回成功
func (s *AccountService) UpdateAccount(ctx context.Context, account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: 账户为空", ErrValidation)
	}

	stored, err := s.accountRepo.GetByID(ctx, nil, account.ID)
	if err != nil {
		return translateRepoErr("查询账户失败", err)
	}
	if !stored.OwnedBy(account.UserID) {
		return ErrForbidden
	}
	if account.IsDefault || stored.IsDefault {
		s.log.WithField("account_id", stored.ID).Debug("默认账户不可编辑，忽略更新")
		return nil
	}

	stored.Name = account.Name
	stored.Color = account.Color
	stored.Balance = account.Balance
	if err := s.accountRepo.Save(ctx, nil, stored); err != nil {
		return translateRepoErr("更新账户失败", err)
	}

	pushMirror(ctx, s.mirror, s.log, stored)
	return nil
}

// DeleteAccount 删除账户
//
// 先删除账户下的收入和支出，再删除账户本身；两步不在同一事务中，
// 中途失败会留下已删流水但账户仍在的状态，重试即可恢复。转账记录保留。
func (s *AccountService) DeleteAccount(ctx context.Context, id, actingUserID string) error {
	account, err := s.accountRepo.GetByID(ctx, nil, id)
	if err != nil {
		return translateRepoErr("查询账户失败", err)
	}
	if !account.OwnedBy(actingUserID) {
		return ErrForbidden
	}
	if account.IsDefault {
		return ErrDefaultAccount
	}
	if !account.Balance.IsZero() {
		return fmt.Errorf("%w: 当前余额 %s，请先转出", ErrNonZeroBalance, account.Balance.String())
	}

	removed, err := s.entryRepo.DeleteByAccount(ctx, nil, actingUserID, id)
	if err != nil {
		return fmt.Errorf("删除账户流水失败: %w", err)
	}

	msg, err := newOutboxMessage(s.cfg.Kafka.Topic.LedgerEvents, model.EventAccountDeleted, map[string]interface{}{
		"account_id":      account.ID,
		"account_name":    account.Name,
		"user_id":         account.UserID,
		"entries_removed": removed,
		"deleted_at":      time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return translateRepoErr("删除账户失败", err)
		}
		return fmt.Errorf("删除账户失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":         actingUserID,
		"account_id":      id,
		"entries_removed": removed,
	}).Info("账户已删除")
	dropMirror(ctx, s.mirror, s.log, actingUserID, id)
	return nil
}
