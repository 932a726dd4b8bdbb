package service

import (
	"context"
	"errors"
	"testing"

	"billexpress/internal/model"
	"billexpress/internal/repository"
)

func TestGetAccounts_BootstrapsDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.accounts.GetAccounts(ctx, "u1")
	if first.Synthetic {
		t.Fatalf("GetAccounts() synthetic, cause = %v", first.Cause)
	}
	if len(first.Accounts) != 1 {
		t.Fatalf("GetAccounts() len = %d, want 1", len(first.Accounts))
	}
	def := first.Default()
	if def == nil || def.Name != "Efectivo" || def.ID == "" {
		t.Fatalf("GetAccounts() default = %+v, want persisted Efectivo", def)
	}
	assertBalance(t, "Efectivo", def.Balance, "0")

	second := env.accounts.GetAccounts(ctx, "u1")
	if len(second.Accounts) != 1 || second.Default().ID != def.ID {
		t.Errorf("second GetAccounts() = %+v, want the same single default", second.Accounts)
	}

	if _, ok := env.mirror.Account(def.ID); !ok {
		t.Errorf("default account not mirrored")
	}
}

func TestGetAccounts_NormalizesDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	repo := repository.NewAccountRepository(env.db)

	a := &model.Account{UserID: "u1", Name: "A", IsDefault: true}
	b := &model.Account{UserID: "u1", Name: "B", IsDefault: true}
	c := &model.Account{UserID: "u2", Name: "C"}
	for _, acc := range []*model.Account{a, b, c} {
		if err := repo.Create(ctx, nil, acc); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	countDefaults := func(userID string) int {
		n := 0
		stored, err := repo.ListByUserID(ctx, userID)
		if err != nil {
			t.Fatalf("ListByUserID() error = %v", err)
		}
		for _, acc := range stored {
			if acc.IsDefault {
				n++
			}
		}
		return n
	}

	env.accounts.GetAccounts(ctx, "u1")
	if got := countDefaults("u1"); got != 1 {
		t.Errorf("u1 defaults = %d, want 1", got)
	}

	set := env.accounts.GetAccounts(ctx, "u2")
	if len(set.Accounts) != 1 || !set.Accounts[0].IsDefault {
		t.Errorf("u2 accounts = %+v, want C promoted to default", set.Accounts)
	}
	if got := countDefaults("u2"); got != 1 {
		t.Errorf("u2 defaults = %d, want 1", got)
	}
}

func TestGetAccounts_OnlyOwnAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1", "Banco", "10")
	env.createAccount(t, "u2", "Ahorro", "20")

	set := env.accounts.GetAccounts(context.Background(), "u1")
	for _, acc := range set.Accounts {
		if acc.UserID != "u1" {
			t.Errorf("GetAccounts(u1) returned account of %s", acc.UserID)
		}
	}
}

func TestGetAccounts_SyntheticFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	set := env.accounts.GetAccounts(ctx, "")
	if !set.Synthetic || !errors.Is(set.Cause, ErrValidation) {
		t.Errorf("GetAccounts(\"\") = synthetic %v cause %v, want synthetic validation", set.Synthetic, set.Cause)
	}

	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	_ = sqlDB.Close()

	set = env.accounts.GetAccounts(ctx, "u1")
	if !set.Synthetic || set.Cause == nil {
		t.Fatalf("GetAccounts() with closed store = synthetic %v cause %v", set.Synthetic, set.Cause)
	}
	def := set.Default()
	if def == nil || def.ID != "" || def.Name != "Efectivo" || !def.Balance.IsZero() {
		t.Errorf("synthetic default = %+v", def)
	}
}

func TestCreateAccount_OpeningBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.defaultAccount(t, "u1")

	positive := env.createAccount(t, "u1", "Banco", "150.50")
	negative := env.createAccount(t, "u1", "Tarjeta", "-50")

	if positive.IsDefault || negative.IsDefault {
		t.Errorf("new accounts should not be default")
	}

	for _, tc := range []struct {
		account *model.Account
		want    string
	}{
		{positive, "150.50"},
		{negative, "-50"},
	} {
		got, err := env.reconciler.RecomputeBalance(ctx, tc.account.ID, "u1")
		if err != nil {
			t.Fatalf("RecomputeBalance(%s) error = %v", tc.account.Name, err)
		}
		assertBalance(t, tc.account.Name, got, tc.want)
	}

	incomes, err := env.entries.ListIncomes(ctx, "u1")
	if err != nil {
		t.Fatalf("ListIncomes() error = %v", err)
	}
	if len(incomes) != 1 || incomes[0].Category != openingBalanceCategory {
		t.Errorf("incomes = %+v, want one opening balance", incomes)
	}
}

func TestCreateAccount_ForcesSingleDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.defaultAccount(t, "u1")

	account, err := env.accounts.CreateAccount(ctx, &model.Account{UserID: "u1", Name: "Banco", IsDefault: true})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if account.IsDefault {
		t.Errorf("CreateAccount() IsDefault = true, want false while %s is default", def.Name)
	}

	if _, err := env.accounts.CreateAccount(ctx, &model.Account{Name: "x"}); !errors.Is(err, ErrValidation) {
		t.Errorf("CreateAccount() without user error = %v, want %v", err, ErrValidation)
	}
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.defaultAccount(t, "u1")
	banco := env.createAccount(t, "u1", "Banco", "0")

	t.Run("default is a silent no-op", func(t *testing.T) {
		err := env.accounts.UpdateAccount(ctx, &model.Account{ID: def.ID, UserID: "u1", Name: "Renamed"})
		if err != nil {
			t.Fatalf("UpdateAccount() error = %v", err)
		}
		got, _ := env.accounts.GetAccount(ctx, def.ID, "u1")
		if got.Name != "Efectivo" {
			t.Errorf("default name = %q, want unchanged", got.Name)
		}
	})

	t.Run("regular account", func(t *testing.T) {
		err := env.accounts.UpdateAccount(ctx, &model.Account{ID: banco.ID, UserID: "u1", Name: "Banco MX", Color: "#000000"})
		if err != nil {
			t.Fatalf("UpdateAccount() error = %v", err)
		}
		got, _ := env.accounts.GetAccount(ctx, banco.ID, "u1")
		if got.Name != "Banco MX" || got.Color != "#000000" {
			t.Errorf("updated account = %+v", got)
		}
		mirrored, ok := env.mirror.Account(banco.ID)
		if !ok || mirrored.Name != "Banco MX" {
			t.Errorf("mirror = %+v, want renamed", mirrored)
		}
	})

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name    string
			account *model.Account
			want    error
		}{
			{"missing", &model.Account{ID: "nope", UserID: "u1"}, ErrNotFound},
			{"other owner", &model.Account{ID: banco.ID, UserID: "u2"}, ErrForbidden},
			{"nil", nil, ErrValidation},
		}
		for _, tc := range cases {
			if err := env.accounts.UpdateAccount(ctx, tc.account); !errors.Is(err, tc.want) {
				t.Errorf("%s: UpdateAccount() error = %v, want %v", tc.name, err, tc.want)
			}
		}
	})
}

func TestDeleteAccount_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.defaultAccount(t, "u1")
	banco := env.createAccount(t, "u1", "Banco", "10")

	cases := []struct {
		name string
		id   string
		user string
		want error
	}{
		{"missing", "nope", "u1", ErrNotFound},
		{"other owner", banco.ID, "u2", ErrForbidden},
		{"default", def.ID, "u1", ErrDefaultAccount},
		{"non-zero balance", banco.ID, "u1", ErrNonZeroBalance},
	}
	for _, tc := range cases {
		if err := env.accounts.DeleteAccount(ctx, tc.id, tc.user); !errors.Is(err, tc.want) {
			t.Errorf("%s: DeleteAccount() error = %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := env.accounts.GetAccount(ctx, banco.ID, "u1"); err != nil {
		t.Errorf("account removed after refused delete: %v", err)
	}
}

func TestDeleteAccount_KeepsTransfers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.defaultAccount(t, "u1")
	banco := env.createAccount(t, "u1", "Banco", "0")
	env.income(t, "u1", banco.ID, "100")

	if _, err := env.transfers.Transfer(ctx, &TransferRequest{
		FromAccountID: banco.ID,
		ToAccountID:   def.ID,
		Amount:        dec("100"),
		UserID:        "u1",
	}); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	if err := env.accounts.DeleteAccount(ctx, banco.ID, "u1"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	if _, err := env.accounts.GetAccount(ctx, banco.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAccount() after delete error = %v, want %v", err, ErrNotFound)
	}
	incomes, _ := env.entries.ListIncomes(ctx, "u1")
	for _, in := range incomes {
		if in.AccountID == banco.ID {
			t.Errorf("income %s of deleted account survived", in.ID)
		}
	}

	transfers, err := env.transfers.ListTransfers(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransfers() error = %v", err)
	}
	if len(transfers) != 1 || transfers[0].FromAccountName != "Banco" {
		t.Fatalf("transfers = %+v, want the Banco transfer kept", transfers)
	}

	got, err := env.reconciler.RecomputeBalance(ctx, def.ID, "u1")
	if err != nil {
		t.Fatalf("RecomputeBalance() error = %v", err)
	}
	assertBalance(t, "Efectivo", got, "100")

	if _, ok := env.mirror.Account(banco.ID); ok {
		t.Errorf("deleted account still mirrored")
	}
	if got := len(env.events(t, model.EventAccountDeleted)); got != 1 {
		t.Errorf("account.deleted events = %d, want 1", got)
	}
}
