package service

import (
	"context"
	"errors"
	"testing"

	"billexpress/internal/config"
	"billexpress/internal/infrastructure/cache"
	"billexpress/internal/infrastructure/logger"
	"billexpress/internal/model"
	"billexpress/internal/repository"
	"billexpress/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	cfg        *config.Config
	mirror     *cache.MemoryMirror
	accounts   *AccountService
	transfers  *TransferService
	entries    *EntryService
	reconciler *ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mirror := cache.NewMemoryMirror()
	env := newTestEnvWithMirror(t, mirror)
	env.mirror = mirror
	return env
}

func newTestEnvWithMirror(t *testing.T, mirror AccountMirror) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	log := logger.Discard()
	return &testEnv{
		db:         db,
		cfg:        cfg,
		accounts:   NewAccountService(db, mirror, cfg, log),
		transfers:  NewTransferService(db, mirror, cfg, log),
		entries:    NewEntryService(db, mirror, cfg, log),
		reconciler: NewReconcileService(db, mirror, cfg, log),
	}
}

// failingMirror 模拟镜像不可用
type failingMirror struct{}

func (failingMirror) SetAccount(context.Context, *model.Account) error {
	return errors.New("mirror unavailable")
}

func (failingMirror) RemoveAccount(context.Context, string, string) error {
	return errors.New("mirror unavailable")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) defaultAccount(t *testing.T, userID string) *model.Account {
	t.Helper()
	set := e.accounts.GetAccounts(context.Background(), userID)
	if set.Synthetic {
		t.Fatalf("GetAccounts(%q) returned synthetic account: %v", userID, set.Cause)
	}
	def := set.Default()
	if def == nil {
		t.Fatalf("GetAccounts(%q) has no default account", userID)
	}
	return def
}

func (e *testEnv) createAccount(t *testing.T, userID, name, balance string) *model.Account {
	t.Helper()
	account, err := e.accounts.CreateAccount(context.Background(), &model.Account{
		UserID:  userID,
		Name:    name,
		Color:   "#2196F3",
		Balance: dec(balance),
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) error = %v", name, err)
	}
	return account
}

func (e *testEnv) income(t *testing.T, userID, accountID, amount string) *model.Income {
	t.Helper()
	income, err := e.entries.RecordIncome(context.Background(), &EntryRequest{
		AccountID: accountID,
		UserID:    userID,
		Amount:    dec(amount),
		Category:  "salario",
	})
	if err != nil {
		t.Fatalf("RecordIncome(%s) error = %v", amount, err)
	}
	return income
}

func (e *testEnv) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	account, err := repository.NewAccountRepository(e.db).GetByID(context.Background(), nil, accountID)
	if err != nil {
		t.Fatalf("GetByID(%s) error = %v", accountID, err)
	}
	return account.Balance
}

// corruptBalance 绕过服务直接改写缓存余额
func (e *testEnv) corruptBalance(t *testing.T, accountID, balance string) {
	t.Helper()
	err := e.db.Model(&model.Account{}).Where("id = ?", accountID).Update("balance", dec(balance)).Error
	if err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}
}

func (e *testEnv) events(t *testing.T, eventType string) []*model.OutboxMessage {
	t.Helper()
	msgs, err := repository.NewOutboxRepository(e.db).ListByEventType(context.Background(), eventType)
	if err != nil {
		t.Fatalf("ListByEventType(%s) error = %v", eventType, err)
	}
	return msgs
}

func assertBalance(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s balance = %s, want %s", name, got.String(), want)
	}
}
