package approval

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	domainApproval "github.com/gabrieltemtsen/clenja/internal/domain/approval"
	"github.com/gabrieltemtsen/clenja/internal/domain/journal"
	domainLoan "github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/id"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Vault is the funding side of the vault ledger.
type Vault interface {
	PoolState(ctx context.Context, r uow.Repos) (*vault.Pool, error)
	FundLoan(ctx context.Context, r uow.Repos, caller string, loanID uint64, borrower string, amount money.Amount) error
}

type Usecase struct {
	uow       uow.UnitOfWork
	guard     *guard.Guard
	vault     Vault
	validator loanUC.Validator
	roles     loanUC.Roles
	poolID    uint64
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewUsecase(tx uow.UnitOfWork, g *guard.Guard, v Vault, val loanUC.Validator, poolID uint64, roles loanUC.Roles, log logrus.FieldLogger) *Usecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Usecase{
		uow:       tx,
		guard:     g,
		vault:     v,
		validator: val,
		roles:     roles,
		poolID:    poolID,
		now:       time.Now,
		log:       log.WithField("component", "approval"),
	}
}

func (u *Usecase) WithClock(now func() time.Time) *Usecase {
	u.now = now
	return u
}

// ApproveAndDisburse re-validates a requested loan against the current pool,
// marks it disbursed, and funds the borrower.
func (u *Usecase) ApproveAndDisburse(ctx context.Context, in ApproveInput) (*ApprovalDTO, error) {
	if !address.Equal(in.Caller, u.roles.Operator) {
		return nil, domainLoan.ErrUnauthorized
	}
	operator, _ := address.Normalize(in.Caller)

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var dto *ApprovalDTO
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		// State guard: only requested -> disbursed
		if !l.Active {
			return domainLoan.ErrNotActive
		}
		if l.Disbursed {
			return domainLoan.ErrAlreadyDisbursed
		}
		if _, err := r.Approvals.GetByLoanID(ctx, l.ID); err == nil {
			return domainLoan.ErrAlreadyDisbursed
		} else if !errors.Is(err, domainApproval.ErrNotFound) {
			return err
		}

		p, err := u.vault.PoolState(ctx, r)
		if err != nil {
			return err
		}
		if err := u.validator.Validate(ctx, r, risk.Proposal{
			Borrower:        l.Borrower,
			Principal:       l.Principal,
			Duration:        l.Duration,
			AprBps:          l.AprBps,
			PoolAssets:      p.TotalAssets,
			PoolOutstanding: p.OutstandingLoans,
		}); err != nil {
			return err
		}

		at := u.now().UTC()
		next := *l
		next.Disbursed = true
		next.StartTime = at.Unix()
		next.LastPaymentTime = at.Unix()
		if err := r.Loans.Save(ctx, &next); err != nil {
			return err
		}

		a := &domainApproval.Approval{
			ApprovalID: id.NewID32(),
			LoanID:     l.ID,
			OperatorID: operator,
			ApprovedAt: at,
		}
		if err := r.Approvals.Create(ctx, a); err != nil {
			return err
		}

		if err := u.vault.FundLoan(ctx, r, u.roles.LoanManager, l.ID, l.Borrower, l.Principal); err != nil {
			return err
		}
		if err := r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindLoanDisbursed,
			LoanID:       l.ID,
			Actor:        operator,
			Counterparty: l.Borrower,
			Amount:       l.Principal,
			Principal:    l.Principal,
		}); err != nil {
			return err
		}

		ld, err := loanUC.ToDTO(&next, at.Unix())
		if err != nil {
			return err
		}
		dto = toDTO(a, ld)
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": in.LoanID, "approval_id": dto.ApprovalID, "principal": dto.Loan.Principal}).Info("loan disbursed")
	return dto, nil
}

func toDTO(a *domainApproval.Approval, l *loanUC.LoanDTO) *ApprovalDTO {
	return &ApprovalDTO{
		ApprovalID: a.ApprovalID,
		LoanID:     a.LoanID,
		OperatorID: a.OperatorID,
		ApprovedAt: a.ApprovedAt.UTC(),
		Loan:       l,
	}
}

// Get returns the approval with the given public id and its loan as of now.
func (u *Usecase) Get(ctx context.Context, approvalID string) (*ApprovalDTO, error) {
	if !id.Valid(approvalID) {
		return nil, domainApproval.ErrNotFound
	}
	return u.view(ctx, func(r uow.Repos) (*domainApproval.Approval, error) {
		return r.Approvals.GetByApprovalID(ctx, approvalID)
	})
}

// ForLoan returns the approval that disbursed loanID.
func (u *Usecase) ForLoan(ctx context.Context, loanID uint64) (*ApprovalDTO, error) {
	return u.view(ctx, func(r uow.Repos) (*domainApproval.Approval, error) {
		return r.Approvals.GetByLoanID(ctx, loanID)
	})
}

func (u *Usecase) view(ctx context.Context, find func(r uow.Repos) (*domainApproval.Approval, error)) (*ApprovalDTO, error) {
	var dto *ApprovalDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		a, err := find(r)
		if err != nil {
			return err
		}
		l, err := r.Loans.GetByID(ctx, a.LoanID)
		if err != nil {
			return err
		}
		ld, err := loanUC.ToDTO(l, u.now().UTC().Unix())
		if err != nil {
			return err
		}
		dto = toDTO(a, ld)
		return nil
	})
	return dto, err
}

// ListByOperator returns up to limit approvals signed by operator, newest first.
func (u *Usecase) ListByOperator(ctx context.Context, operator string, limit int) ([]ApprovalDTO, error) {
	op, err := address.Normalize(operator)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	var out []ApprovalDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		list, err := r.Approvals.ListByOperator(ctx, op, limit)
		if err != nil {
			return err
		}
		out = make([]ApprovalDTO, 0, len(list))
		for i := range list {
			out = append(out, *toDTO(&list[i], nil))
		}
		return nil
	})
	return out, err
}
