package loan

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/internal/domain/journal"
	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Vault is the part of the vault ledger loans draw on.
type Vault interface {
	PoolState(ctx context.Context, r uow.Repos) (*vault.Pool, error)
	ReceiveRepayment(ctx context.Context, r uow.Repos, caller string, loanID uint64, principal, interest money.Amount) error
}

type Validator interface {
	Validate(ctx context.Context, r uow.Repos, p risk.Proposal) error
}

type Usecase struct {
	uow       uow.UnitOfWork
	guard     *guard.Guard
	vault     Vault
	validator Validator
	poolID    uint64
	roles     Roles
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewUsecase(tx uow.UnitOfWork, g *guard.Guard, v Vault, val Validator, poolID uint64, roles Roles, log logrus.FieldLogger) *Usecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Usecase{
		uow:       tx,
		guard:     g,
		vault:     v,
		validator: val,
		poolID:    poolID,
		roles:     roles,
		now:       time.Now,
		log:       log.WithField("component", "loan"),
	}
}

// WithClock replaces the time source used for accrual.
func (u *Usecase) WithClock(now func() time.Time) *Usecase {
	u.now = now
	return u
}

func (u *Usecase) unix() int64 { return u.now().UTC().Unix() }

// RequestLoan validates the terms against current pool totals and records
// the loan. Policy rejections come back as *risk.PolicyError.
func (u *Usecase) RequestLoan(ctx context.Context, in RequestInput) (*LoanDTO, error) {
	if in.Principal.IsZero() {
		return nil, loan.ErrInvalidAmount
	}
	borrower, err := address.Normalize(in.Caller)
	if err != nil {
		return nil, err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var dto *LoanDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := u.vault.PoolState(ctx, r)
		if err != nil {
			return err
		}
		if err := u.validator.Validate(ctx, r, risk.Proposal{
			Borrower:        borrower,
			Principal:       in.Principal,
			Duration:        in.Duration,
			AprBps:          in.AprBps,
			PoolAssets:      p.TotalAssets,
			PoolOutstanding: p.OutstandingLoans,
		}); err != nil {
			return err
		}

		l := &loan.Loan{
			PoolID:          u.poolID,
			Borrower:        borrower,
			Principal:       in.Principal,
			PrincipalRepaid: money.Zero(),
			InterestPaid:    money.Zero(),
			AprBps:          in.AprBps,
			Duration:        in.Duration,
			Active:          true,
			Metadata:        in.Metadata,
		}
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		if err := r.Journal.Append(ctx, &journal.Entry{
			PoolID:    u.poolID,
			Kind:      journal.KindLoanRequested,
			LoanID:    l.ID,
			Actor:     borrower,
			Amount:    in.Principal,
			Principal: in.Principal,
		}); err != nil {
			return err
		}
		dto, err = ToDTO(l, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": dto.LoanID, "borrower": borrower, "principal": in.Principal, "apr_bps": in.AprBps}).Info("loan requested")
	return dto, nil
}

func (u *Usecase) Get(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		dto, err = ToDTO(l, u.unix())
		return err
	})
	return dto, err
}

func (u *Usecase) ListByBorrower(ctx context.Context, borrower string) ([]LoanDTO, error) {
	borrower, err := address.Normalize(borrower)
	if err != nil {
		return nil, err
	}
	now := u.unix()
	out := []LoanDTO{}
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		loans, err := r.Loans.ListByBorrower(ctx, borrower)
		if err != nil {
			return err
		}
		for i := range loans {
			dto, err := ToDTO(&loans[i], now)
			if err != nil {
				return err
			}
			out = append(out, *dto)
		}
		return nil
	})
	return out, err
}

func (u *Usecase) AccruedInterest(ctx context.Context, loanID uint64) (money.Amount, error) {
	dto, err := u.Get(ctx, loanID)
	if err != nil {
		return money.Zero(), err
	}
	return dto.AccruedInterest, nil
}

func (u *Usecase) TotalOwed(ctx context.Context, loanID uint64) (money.Amount, error) {
	dto, err := u.Get(ctx, loanID)
	if err != nil {
		return money.Zero(), err
	}
	return dto.TotalOwed, nil
}

// Repay applies amount interest first. Only what is owed is pulled from the
// caller; the fee share of interest goes to the treasury.
func (u *Usecase) Repay(ctx context.Context, in RepayInput) (*RepaymentDTO, error) {
	if in.Amount.IsZero() {
		return nil, loan.ErrInvalidAmount
	}
	payer, err := address.Normalize(in.Caller)
	if err != nil {
		return nil, err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *RepaymentDTO
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Loan) error {
		if !l.Active {
			return loan.ErrNotActive
		}
		if !l.Disbursed {
			return loan.ErrNotDisbursed
		}
		now := u.unix()
		due, err := l.AccruedInterest(now)
		if err != nil {
			return err
		}
		remaining, err := l.RemainingPrincipal()
		if err != nil {
			return err
		}
		fees, err := r.Loans.GetSettings(ctx, u.poolID)
		if err != nil {
			return err
		}
		split, err := loan.SplitRepayment(in.Amount, due, remaining, fees.AgentFeeBps)
		if err != nil {
			return err
		}
		yield, err := split.Interest.Sub(split.Fee)
		if err != nil {
			return err
		}

		p, err := u.vault.PoolState(ctx, r)
		if err != nil {
			return err
		}
		next := *l
		if err := next.Apply(split, now); err != nil {
			return err
		}

		if !split.ToVault.IsZero() {
			if err := r.Assets.Transfer(ctx, payer, p.Custody, split.ToVault); err != nil {
				return err
			}
		}
		if !split.Fee.IsZero() {
			if err := r.Assets.Transfer(ctx, payer, fees.Treasury, split.Fee); err != nil {
				return err
			}
		}
		if err := u.vault.ReceiveRepayment(ctx, r, u.roles.LoanManager, l.ID, split.Principal, yield); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, &next); err != nil {
			return err
		}
		if err := r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindRepayment,
			LoanID:       l.ID,
			Actor:        payer,
			Counterparty: fees.Treasury,
			Amount:       split.Pulled,
			Principal:    split.Principal,
			Interest:     split.Interest,
			Fee:          split.Fee,
		}); err != nil {
			return err
		}
		dto, err := ToDTO(&next, now)
		if err != nil {
			return err
		}
		out = &RepaymentDTO{LoanID: l.ID, Split: split, Loan: dto}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{
		"loan_id":   in.LoanID,
		"payer":     payer,
		"interest":  out.Interest,
		"principal": out.Principal,
		"fee":       out.Fee,
	}).Info("repayment")
	return out, nil
}

// Close deactivates a loan whose principal is fully repaid. Interest accrued
// after the last payment is not required.
func (u *Usecase) Close(ctx context.Context, in CloseInput) (*LoanDTO, error) {
	caller, err := address.Normalize(in.Caller)
	if err != nil {
		return nil, err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var dto *LoanDTO
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Loan) error {
		if caller != l.Borrower && !address.Equal(caller, u.roles.Operator) {
			return loan.ErrUnauthorized
		}
		if !l.Active {
			return loan.ErrNotActive
		}
		if !l.Disbursed {
			return loan.ErrNotDisbursed
		}
		if l.PrincipalRepaid.Lt(l.Principal) {
			return loan.ErrNotFullyRepaid
		}
		next := *l
		next.Active = false
		if err := r.Loans.Save(ctx, &next); err != nil {
			return err
		}
		if err := r.Journal.Append(ctx, &journal.Entry{
			PoolID:    u.poolID,
			Kind:      journal.KindLoanClosed,
			LoanID:    l.ID,
			Actor:     caller,
			Principal: l.PrincipalRepaid,
			Interest:  l.InterestPaid,
		}); err != nil {
			return err
		}
		var err error
		dto, err = ToDTO(&next, u.unix())
		return err
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": in.LoanID, "caller": caller}).Info("loan closed")
	return dto, nil
}

func (u *Usecase) FeeSettings(ctx context.Context) (*loan.Settings, error) {
	var out *loan.Settings
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Loans.GetSettings(ctx, u.poolID)
		return err
	})
	return out, err
}

// SeedFeeSettings stores initial fee settings unless some exist.
func (u *Usecase) SeedFeeSettings(ctx context.Context, feeBps money.Bps, treasury string) error {
	treasury, err := address.Normalize(treasury)
	if err != nil {
		return err
	}
	s := &loan.Settings{PoolID: u.poolID, AgentFeeBps: feeBps, Treasury: treasury}
	if err := s.Check(); err != nil {
		return err
	}
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		_, err := r.Loans.GetSettings(ctx, u.poolID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, loan.ErrSettingsNotFound):
			return err
		}
		return r.Loans.SaveSettings(ctx, s)
	})
}

func (u *Usecase) UpdateFeeSettings(ctx context.Context, in FeeInput) (*loan.Settings, error) {
	if !address.Equal(in.Caller, u.roles.Owner) {
		return nil, loan.ErrUnauthorized
	}
	if !in.AgentFeeBps.Valid() {
		return nil, loan.ErrInvalidFee
	}
	treasury, err := address.Normalize(in.Treasury)
	if err != nil {
		return nil, err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s := &loan.Settings{PoolID: u.poolID, AgentFeeBps: in.AgentFeeBps, Treasury: treasury}
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.SaveSettings(ctx, s); err != nil {
			return err
		}
		return r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindFeeUpdated,
			Actor:        u.roles.Owner,
			Counterparty: treasury,
		})
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"agent_fee_bps": in.AgentFeeBps, "treasury": treasury}).Info("fee settings updated")
	return s, nil
}

// ToDTO builds the view of l with interest accrued up to now (unix seconds).
func ToDTO(l *loan.Loan, now int64) (*LoanDTO, error) {
	remaining, err := l.RemainingPrincipal()
	if err != nil {
		return nil, err
	}
	accrued, err := l.AccruedInterest(now)
	if err != nil {
		return nil, err
	}
	owed, err := remaining.Add(accrued)
	if err != nil {
		return nil, err
	}
	return &LoanDTO{
		LoanID:             l.ID,
		Borrower:           l.Borrower,
		State:              l.State(),
		Principal:          l.Principal,
		PrincipalRepaid:    l.PrincipalRepaid,
		InterestPaid:       l.InterestPaid,
		RemainingPrincipal: remaining,
		AccruedInterest:    accrued,
		TotalOwed:          owed,
		AprBps:             l.AprBps,
		Duration:           l.Duration,
		StartTime:          l.StartTime,
		LastPaymentTime:    l.LastPaymentTime,
		Active:             l.Active,
		Disbursed:          l.Disbursed,
		Metadata:           l.Metadata,
		CreatedAt:          l.CreatedAt,
	}, nil
}
