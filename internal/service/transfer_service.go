package service

import (
	"context"
	"fmt"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/model"
	"billexpress/internal/repository"
	"billexpress/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TransferService struct {
	db           *gorm.DB
	cfg          *config.Config
	mirror       AccountMirror
	log          *logrus.Entry
	accountRepo  *repository.AccountRepository
	transferRepo *repository.TransferRepository
	outboxRepo   *repository.OutboxRepository
}

func NewTransferService(db *gorm.DB, mirror AccountMirror, cfg *config.Config, log *logrus.Logger) *TransferService {
	return &TransferService{
		db:           db,
		cfg:          cfg,
		mirror:       orNop(mirror),
		log:          log.WithField("component", "transfer_service"),
		accountRepo:  repository.NewAccountRepository(db),
		transferRepo: repository.NewTransferRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	UserID        string
	Description   string
}

// Transfer 在同一用户的两个账户之间转账
//
// 两个账户的余额、流水计数、转账记录和 outbox 事件在一个事务中提交，
// 任何读者都看不到只完成一边的转账。
func (s *TransferService) Transfer(ctx context.Context, req *TransferRequest) (*model.Transfer, error) {
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrInvalidTransfer
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		transfer *model.Transfer
		from, to *model.Account
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		from, to, err = s.lockPair(ctx, tx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}

		if !from.OwnedBy(req.UserID) || !to.OwnedBy(req.UserID) {
			return ErrForbidden
		}
		if from.Balance.LessThan(req.Amount) {
			return fmt.Errorf("%w: 可用余额 %s", ErrInsufficientFunds, from.Balance.String())
		}

		from.Balance = from.Balance.Sub(req.Amount)
		if err := s.accountRepo.SetBalanceWithVersion(ctx, tx, from.ID, from.Balance, 1, from.Version); err != nil {
			return translateRepoErr("扣减转出账户失败", err)
		}
		to.Balance = to.Balance.Add(req.Amount)
		if err := s.accountRepo.SetBalanceWithVersion(ctx, tx, to.ID, to.Balance, 1, to.Version); err != nil {
			return translateRepoErr("增加转入账户失败", err)
		}

		description := req.Description
		if description == "" {
			description = fmt.Sprintf("Transferencia de %s a %s", from.Name, to.Name)
		}

		transfer = &model.Transfer{
			TransferNo:      idgen.GenerateTransferNo(),
			FromAccountID:   from.ID,
			ToAccountID:     to.ID,
			FromAccountName: from.Name,
			ToAccountName:   to.Name,
			Amount:          req.Amount,
			UserID:          req.UserID,
			Description:     description,
			Date:            time.Now(),
		}
		if err := s.transferRepo.Create(ctx, tx, transfer); err != nil {
			return fmt.Errorf("记录转账失败: %w", err)
		}

		msg, err := newOutboxMessage(s.cfg.Kafka.Topic.LedgerEvents, model.EventTransferCompleted, map[string]interface{}{
			"transfer_id":     transfer.ID,
			"transfer_no":     transfer.TransferNo,
			"user_id":         req.UserID,
			"from_account_id": from.ID,
			"to_account_id":   to.ID,
			"amount":          req.Amount.String(),
			"date":            transfer.Date.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		if isLedgerErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("转账失败: %w", err)
	}

	for _, a := range []*model.Account{from, to} {
		a.TransactionCount++
		a.Version++
	}

	s.log.WithFields(logrus.Fields{
		"transfer_no":     transfer.TransferNo,
		"user_id":         req.UserID,
		"from_account_id": from.ID,
		"to_account_id":   to.ID,
		"amount":          req.Amount.String(),
	}).Info("转账成功")
	pushMirror(ctx, s.mirror, s.log, from, to)

	return transfer, nil
}

// lockPair 按 ID 顺序加锁读取两个账户，避免相向转账在 MySQL 上死锁
// 任一账户不存在都返回 ErrNotFound，先于归属校验
func (s *TransferService) lockPair(ctx context.Context, tx *gorm.DB, fromID, toID string) (*model.Account, *model.Account, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}

	a, err := s.accountRepo.GetByIDForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, translateRepoErr("查询账户失败", err)
	}
	b, err := s.accountRepo.GetByIDForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, translateRepoErr("查询账户失败", err)
	}

	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

// ListTransfers 按时间倒序返回用户的转账记录
func (s *TransferService) ListTransfers(ctx context.Context, userID string) ([]*model.Transfer, error) {
	transfers, err := s.transferRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询转账记录失败: %w", err)
	}

	owned := transfers[:0]
	for _, t := range transfers {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}
