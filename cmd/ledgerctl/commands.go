package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"billexpress/internal/config"
	"billexpress/internal/infrastructure/cache"
	"billexpress/internal/infrastructure/database"
	"billexpress/internal/infrastructure/logger"
	"billexpress/internal/job"
	"billexpress/internal/service"
	"billexpress/pkg/moneyfmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var commands = []subcommands.Command{
	&accountsCmd{},
	&transfersCmd{},
	&recomputeCmd{},
	&sweepCmd{},
}

// ledger 命令共享的依赖
type ledger struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  *redis.Client
	mirror cache.Mirror
	log    *logrus.Logger
}

func openLedger() (*ledger, error) {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(&cfg.Log)
	log.SetOutput(os.Stderr)

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	l := &ledger{cfg: cfg, db: db, log: log}
	if cfg.Redis.Enabled {
		if l.redis, err = cache.InitRedis(&cfg.Redis); err != nil {
			return nil, err
		}
	}
	if l.mirror, err = cache.NewMirror(&cfg.Mirror, l.redis); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ledger) close() {
	if l.redis != nil {
		_ = l.redis.Close()
	}
	if sqlDB, err := l.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// run 打开账本后执行 fn，错误统一输出到 stderr
func run(fn func(l *ledger, w io.Writer) error) subcommands.ExitStatus {
	l, err := openLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer l.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := fn(l, w); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type accountsCmd struct {
	user string
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list the accounts of a user" }
func (*accountsCmd) Usage() string {
	return `ledgerctl accounts -user <id>

  Lists the user's accounts with their cached balances. A user without
  accounts gets the default account created on first listing.
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "user id")
}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}
	return run(func(l *ledger, w io.Writer) error {
		set := service.NewAccountService(l.db, l.mirror, l.cfg, l.log).GetAccounts(ctx, c.user)
		if set.Synthetic {
			return fmt.Errorf("accounts unavailable: %v", set.Cause)
		}
		fmt.Fprintln(w, "ID\tNAME\tBALANCE\tDEFAULT\tTXNS\tVERIFIED")
		for _, a := range set.Accounts {
			verified := "-"
			if a.LastVerifiedAt != nil {
				verified = a.LastVerifiedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\n",
				a.ID, a.Name, moneyfmt.Format(a.Balance, l.cfg.Business.Currency), a.IsDefault, a.TransactionCount, verified)
		}
		return nil
	})
}

type transfersCmd struct {
	user string
}

func (*transfersCmd) Name() string     { return "transfers" }
func (*transfersCmd) Synopsis() string { return "list the transfers of a user, newest first" }
func (*transfersCmd) Usage() string {
	return `ledgerctl transfers -user <id>
`
}

func (c *transfersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "user id")
}

func (c *transfersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}
	return run(func(l *ledger, w io.Writer) error {
		transfers, err := service.NewTransferService(l.db, l.mirror, l.cfg, l.log).ListTransfers(ctx, c.user)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "DATE\tNO\tFROM\tTO\tAMOUNT\tDESCRIPTION")
		for _, t := range transfers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.Date.Format("2006-01-02"), t.TransferNo, t.FromAccountName, t.ToAccountName,
				moneyfmt.Format(t.Amount, l.cfg.Business.Currency), t.Description)
		}
		return nil
	})
}

type recomputeCmd struct {
	user    string
	account string
}

func (*recomputeCmd) Name() string     { return "recompute" }
func (*recomputeCmd) Synopsis() string { return "rebuild an account balance from its event history" }
func (*recomputeCmd) Usage() string {
	return `ledgerctl recompute -user <id> -account <id>

  Recomputes the balance from the event history and overwrites the cached
  value unconditionally.
`
}

func (c *recomputeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "owner of the account")
	f.StringVar(&c.account, "account", "", "account id")
}

func (c *recomputeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.account == "" {
		fmt.Fprintln(os.Stderr, "-user and -account are required")
		return subcommands.ExitUsageError
	}
	return run(func(l *ledger, w io.Writer) error {
		balance, err := service.NewReconcileService(l.db, l.mirror, l.cfg, l.log).RecomputeBalance(ctx, c.account, c.user)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", c.account, moneyfmt.Format(balance, l.cfg.Business.Currency))
		return nil
	})
}

type sweepCmd struct {
	user       string
	reportOnly bool
}

func (*sweepCmd) Name() string     { return "sweep" }
func (*sweepCmd) Synopsis() string { return "verify cached balances against the event history" }
func (*sweepCmd) Usage() string {
	return `ledgerctl sweep [-user <id>] [-report-only]

  Verifies every account of the user, or of all users when -user is empty,
  and corrects drift beyond the configured tolerance.
`
}

func (c *sweepCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "user id, empty for all users")
	f.BoolVar(&c.reportOnly, "report-only", false, "report discrepancies without correcting them")
}

func (c *sweepCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(l *ledger, w io.Writer) error {
		reconciler := service.NewReconcileService(l.db, l.mirror, l.cfg, l.log)
		if c.reportOnly {
			reconciler.SetPolicy(service.CorrectionPolicy{AutoCorrect: false})
		}

		var reports []*service.SweepReport
		if c.user != "" {
			report, err := reconciler.VerifySweep(ctx, c.user)
			if err != nil {
				return err
			}
			reports = append(reports, report)
		} else {
			reports = job.NewReconcileJob(l.db, reconciler, l.redis, l.cfg, l.log).RunOnce(ctx)
		}

		fmt.Fprintln(w, "USER\tACCOUNT\tEXPECTED\tACTUAL\tFIXED")
		for _, r := range reports {
			fixed := make(map[string]bool, len(r.FixedAccountIDs))
			for _, id := range r.FixedAccountIDs {
				fixed[id] = true
			}
			for _, d := range r.Discrepancies {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", r.UserID, d.Name, d.Expected, d.Actual, fixed[d.AccountID])
			}
			for _, f := range r.Failures {
				fmt.Fprintf(w, "%s\t%s\terror: %s\t\t\n", r.UserID, f.Name, f.Error)
			}
			fmt.Fprintf(w, "%s\t%d checked\t%d drifted\t%d fixed\t\n",
				r.UserID, r.AccountsChecked, r.AccountsWithDiscrepancies, len(r.FixedAccountIDs))
		}
		return nil
	})
}
