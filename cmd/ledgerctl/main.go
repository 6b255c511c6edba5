// Command ledgerctl manages the asset ledger behind a local or staging pool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gabrieltemtsen/clenja/internal/adapter/repository/gormrepo"
	"github.com/gabrieltemtsen/clenja/internal/config"
	"github.com/gabrieltemtsen/clenja/internal/infrastructure/db"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

const (
	creditCommand  = "credit"
	balanceCommand = "balance"
	migrateCommand = "migrate"
)

var errUsage = errors.New("usage")

func main() {
	cfg := config.Load()
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  ledgerctl migrate")
	fmt.Fprintln(w, "  ledgerctl credit -account <address> -amount <base units>")
	fmt.Fprintln(w, "  ledgerctl balance -account <address>")
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	account := fs.String("account", "", "account address")
	amount := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), logger.Silent)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	switch args[0] {
	case migrateCommand:
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrated")
		return nil
	case creditCommand:
		acct, err := address.Normalize(*account)
		if err != nil {
			return err
		}
		amt, err := money.Parse(*amount)
		if err != nil {
			return err
		}
		var bal money.Amount
		err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			assets := gormrepo.NewAssetLedger(tx)
			if err := assets.Credit(ctx, acct, amt); err != nil {
				return err
			}
			bal, err = assets.BalanceOf(ctx, acct)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", acct, bal)
		return nil
	case balanceCommand:
		acct, err := address.Normalize(*account)
		if err != nil {
			return err
		}
		bal, err := gormrepo.NewAssetLedger(gdb).BalanceOf(ctx, acct)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", acct, bal)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}
