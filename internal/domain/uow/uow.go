package uow

import (
	"context"

	"github.com/gabrieltemtsen/clenja/internal/domain/approval"
	"github.com/gabrieltemtsen/clenja/internal/domain/asset"
	"github.com/gabrieltemtsen/clenja/internal/domain/journal"
	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
)

// Repos are bound to one transaction.
type Repos struct {
	Pools     vault.Repository
	Loans     loan.Repository
	Approvals approval.Repository
	Rules     risk.Repository
	Assets    asset.Ledger
	Journal   journal.Repository
}

// UnitOfWork commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinLoanTx row-locks the loan before fn runs; an unknown id is
	// loan.ErrNotFound and fn is skipped.
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.Loan) error) error
}
