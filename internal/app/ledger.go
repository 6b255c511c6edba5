// Package app assembles the pool ledger: one vault, its loan manager, the
// operator approval flow and the risk validator, all sharing one guard lock.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	approvalUC "github.com/gabrieltemtsen/clenja/internal/usecase/approval"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
	riskUC "github.com/gabrieltemtsen/clenja/internal/usecase/risk"
	vaultUC "github.com/gabrieltemtsen/clenja/internal/usecase/vault"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Guard names, one per component.
const (
	GuardVault    = "vault"
	GuardLoan     = "loan"
	GuardApproval = "approval"
	GuardRisk     = "risk"
)

var ErrManagerMismatch = errors.New("app: pool bound to a different loan manager")

type Options struct {
	PoolID      uint64
	Roles       loanUC.Roles
	Asset       string
	Custody     string
	Treasury    string
	AgentFeeBps money.Bps
	Rules       risk.Rules
	Oracles     map[string]risk.Verifier
	// Defaults to time.Now
	Now func() time.Time
	Log logrus.FieldLogger
}

type Ledger struct {
	Vault    *vaultUC.Usecase
	Loans    *loanUC.Usecase
	Approval *approvalUC.Usecase
	Risk     *riskUC.Usecase

	opts Options
	log  logrus.FieldLogger
}

func New(tx uow.UnitOfWork, o Options) *Ledger {
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if o.PoolID == 0 {
		o.PoolID = 1
	}
	lock := guard.NewLock()

	v := vaultUC.NewUsecase(tx, guard.New(lock, GuardVault), o.PoolID, o.Roles.Owner, o.Log)
	rk := riskUC.NewUsecase(tx, guard.New(lock, GuardRisk), o.PoolID, o.Roles.Owner, o.Oracles, o.Log)
	ln := loanUC.NewUsecase(tx, guard.New(lock, GuardLoan), v, rk, o.PoolID, o.Roles, o.Log)
	ap := approvalUC.NewUsecase(tx, guard.New(lock, GuardApproval), v, rk, o.PoolID, o.Roles, o.Log)
	if o.Now != nil {
		ln.WithClock(o.Now)
		ap.WithClock(o.Now)
	}
	return &Ledger{Vault: v, Loans: ln, Approval: ap, Risk: rk, opts: o, log: o.Log}
}

// Bootstrap creates the pool, seeds rules and fees, and binds the configured
// loan manager. Existing state is left alone, so it is safe on every boot.
func (l *Ledger) Bootstrap(ctx context.Context) error {
	o := l.opts
	if err := l.Vault.Init(ctx, o.Asset, o.Custody); err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	if err := l.Risk.Seed(ctx, o.Rules); err != nil {
		return fmt.Errorf("seed risk rules: %w", err)
	}
	if err := l.Loans.SeedFeeSettings(ctx, o.AgentFeeBps, o.Treasury); err != nil {
		return fmt.Errorf("seed fee settings: %w", err)
	}

	p, err := l.Vault.Pool(ctx)
	if err != nil {
		return err
	}
	switch {
	case p.LoanManager == "":
		err := l.Vault.BindLoanManager(ctx, o.Roles.Owner, o.Roles.LoanManager)
		if err != nil && !errors.Is(err, vault.ErrLoanManagerBound) {
			return fmt.Errorf("bind loan manager: %w", err)
		}
	case !address.Equal(p.LoanManager, o.Roles.LoanManager):
		return fmt.Errorf("%w: %s", ErrManagerMismatch, p.LoanManager)
	}
	l.log.WithFields(logrus.Fields{"pool_id": o.PoolID, "asset": o.Asset}).Info("ledger ready")
	return nil
}
