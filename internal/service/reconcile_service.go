package service

import (
	"context"
	"fmt"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/model"
	"billexpress/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconcileService 以事件流水为准重新计算账户余额
//
// 两条对账路径都只从不可变的收入、支出、转账记录计算，从不参考其他缓存值。
// 对账与转账之间没有互斥：对账读取的快照可能早于并发转账的写入，
// 这种情况下结果会在下一次对账时自动修正。
type ReconcileService struct {
	db           *gorm.DB
	cfg          *config.Config
	mirror       AccountMirror
	log          *logrus.Entry
	tolerance    decimal.Decimal
	policy       CorrectionPolicy
	now          func() time.Time
	accountRepo  *repository.AccountRepository
	entryRepo    *repository.EntryRepository
	transferRepo *repository.TransferRepository
	outboxRepo   *repository.OutboxRepository
}

// CorrectionPolicy 控制巡检发现偏差后是否自动修正
// 检测和上报不受影响
type CorrectionPolicy struct {
	AutoCorrect bool
	MinDrift    decimal.Decimal // 偏差绝对值至少达到该值才自动修正，0 表示不限制
}

func (p CorrectionPolicy) allows(drift decimal.Decimal) bool {
	return p.AutoCorrect && drift.Abs().GreaterThanOrEqual(p.MinDrift)
}

func NewReconcileService(db *gorm.DB, mirror AccountMirror, cfg *config.Config, log *logrus.Logger) *ReconcileService {
	return &ReconcileService{
		db:        db,
		cfg:       cfg,
		mirror:    orNop(mirror),
		log:       log.WithField("component", "reconcile_service"),
		tolerance: decimal.NewFromFloat(cfg.Business.DriftTolerance),
		policy: CorrectionPolicy{
			AutoCorrect: cfg.Business.AutoCorrect,
			MinDrift:    decimal.NewFromFloat(cfg.Business.AutoCorrectMinDrift),
		},
		now:          time.Now,
		accountRepo:  repository.NewAccountRepository(db),
		entryRepo:    repository.NewEntryRepository(db),
		transferRepo: repository.NewTransferRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

// SetPolicy 替换自动修正策略
func (s *ReconcileService) SetPolicy(p CorrectionPolicy) {
	s.policy = p
}

// ExpectedBalance 收入 - 支出 + 转入 - 转出
func (s *ReconcileService) ExpectedBalance(ctx context.Context, account *model.Account) (decimal.Decimal, error) {
	incomes, err := s.entryRepo.ListIncomesByAccount(ctx, account.UserID, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("扫描收入失败: %w", err)
	}
	expenses, err := s.entryRepo.ListExpensesByAccount(ctx, account.UserID, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("扫描支出失败: %w", err)
	}
	incoming, err := s.transferRepo.ListIncoming(ctx, account.UserID, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("扫描转入失败: %w", err)
	}
	outgoing, err := s.transferRepo.ListOutgoing(ctx, account.UserID, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("扫描转出失败: %w", err)
	}

	expected := decimal.Zero
	for _, i := range incomes {
		expected = expected.Add(i.Amount)
	}
	for _, e := range expenses {
		expected = expected.Sub(e.Amount)
	}
	for _, t := range incoming {
		expected = expected.Add(t.Amount)
	}
	for _, t := range outgoing {
		expected = expected.Sub(t.Amount)
	}
	return expected, nil
}

// RecomputeBalance 重新计算并无条件覆盖账户的缓存余额
// 任何时候调用都是安全的，调用后该账户满足余额不变式
func (s *ReconcileService) RecomputeBalance(ctx context.Context, accountID, userID string) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByID(ctx, nil, accountID)
	if err != nil {
		return decimal.Zero, translateRepoErr("查询账户失败", err)
	}
	if !account.OwnedBy(userID) {
		return decimal.Zero, ErrForbidden
	}

	expected, err := s.ExpectedBalance(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.overwrite(ctx, account, expected, "recompute"); err != nil {
		return decimal.Zero, err
	}
	return expected, nil
}

// overwrite 覆盖余额；余额确有变化时在同一事务中写入 balance.corrected 事件
func (s *ReconcileService) overwrite(ctx context.Context, account *model.Account, expected decimal.Decimal, source string) error {
	previous := account.Balance
	verifiedAt := s.now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.OverwriteBalance(ctx, tx, account.ID, expected, verifiedAt); err != nil {
			return err
		}
		if previous.Equal(expected) {
			return nil
		}

		msg, err := newOutboxMessage(s.cfg.Kafka.Topic.LedgerEvents, model.EventBalanceCorrected, map[string]interface{}{
			"account_id": account.ID,
			"user_id":    account.UserID,
			"previous":   previous.String(),
			"corrected":  expected.String(),
			"source":     source,
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.Create(ctx, tx, msg)
	})
	if err != nil {
		return translateRepoErr("覆盖余额失败", err)
	}

	account.Balance = expected
	account.LastVerifiedAt = &verifiedAt
	account.Version++

	if !previous.Equal(expected) {
		s.log.WithFields(logrus.Fields{
			"account_id": account.ID,
			"user_id":    account.UserID,
			"previous":   previous.String(),
			"corrected":  expected.String(),
			"source":     source,
		}).Warn("账户余额已修正")
	}
	pushMirror(ctx, s.mirror, s.log, account)
	return nil
}

type Discrepancy struct {
	AccountID  string          `json:"account_id"`
	Name       string          `json:"name"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
}

// SweepFailure 单个账户校验失败，不影响其他账户
type SweepFailure struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

type SweepReport struct {
	UserID                    string         `json:"user_id"`
	AccountsChecked           int            `json:"accounts_checked"`
	AccountsWithDiscrepancies int            `json:"accounts_with_discrepancies"`
	FixedAccountIDs           []string       `json:"fixed_account_ids"`
	Discrepancies             []Discrepancy  `json:"discrepancies"`
	Failures                  []SweepFailure `json:"failures"`
	StartedAt                 time.Time      `json:"started_at"`
	FinishedAt                time.Time      `json:"finished_at"`
}

// VerifySweep 校验用户的全部账户
//
// 偏差超过容差的账户总会被记录到报告中，是否自动修正由 CorrectionPolicy 决定。
// 单个账户失败被收集到 Failures 中，巡检继续处理剩余账户。
func (s *ReconcileService) VerifySweep(ctx context.Context, userID string) (*SweepReport, error) {
	report := &SweepReport{
		UserID:          userID,
		FixedAccountIDs: []string{},
		Discrepancies:   []Discrepancy{},
		Failures:        []SweepFailure{},
		StartedAt:       s.now(),
	}

	accounts, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}

	for _, account := range accounts {
		if !account.OwnedBy(userID) {
			continue
		}
		if err := s.verifyAccount(ctx, account, report); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"user_id":    userID,
				"account_id": account.ID,
			}).Error("账户校验失败")
			report.Failures = append(report.Failures, SweepFailure{
				AccountID: account.ID,
				Name:      account.Name,
				Error:     err.Error(),
			})
		}
	}

	report.FinishedAt = s.now()
	s.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"checked":       report.AccountsChecked,
		"discrepancies": report.AccountsWithDiscrepancies,
		"fixed":         len(report.FixedAccountIDs),
		"failures":      len(report.Failures),
	}).Info("对账巡检完成")
	return report, nil
}

func (s *ReconcileService) verifyAccount(ctx context.Context, account *model.Account, report *SweepReport) error {
	expected, err := s.ExpectedBalance(ctx, account)
	if err != nil {
		return err
	}

	actual := account.Balance
	difference := expected.Sub(actual)
	if difference.Abs().LessThanOrEqual(s.tolerance) {
		if err := s.accountRepo.TouchVerified(ctx, account.ID, s.now()); err != nil {
			return fmt.Errorf("更新校验时间失败: %w", err)
		}
		report.AccountsChecked++
		return nil
	}

	report.AccountsChecked++
	report.AccountsWithDiscrepancies++
	report.Discrepancies = append(report.Discrepancies, Discrepancy{
		AccountID:  account.ID,
		Name:       account.Name,
		Expected:   expected,
		Actual:     actual,
		Difference: difference,
	})
	s.log.WithFields(logrus.Fields{
		"account_id": account.ID,
		"expected":   expected.String(),
		"actual":     actual.String(),
	}).Warn("发现余额偏差")

	if !s.policy.allows(difference) {
		return nil
	}
	if err := s.overwrite(ctx, account, expected, "sweep"); err != nil {
		return err
	}
	report.FixedAccountIDs = append(report.FixedAccountIDs, account.ID)
	return nil
}
