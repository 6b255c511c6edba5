package uowmock

import (
	"context"
	"errors"
	"sync"

	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
)

var _ uow.UnitOfWork = (*UoW)(nil)

var ErrUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed uow.UnitOfWork that counts transactions and
// records every loan it was asked to lock. Unset functions fail with
// ErrUnimplemented.
type UoW struct {
	WithinTxFn     func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn func(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error

	mu     sync.Mutex
	txs    int
	locked []uint64
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	m.mu.Lock()
	m.txs++
	m.mu.Unlock()
	if m.WithinTxFn == nil {
		return ErrUnimplemented
	}
	return m.WithinTxFn(ctx, fn)
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	m.mu.Lock()
	m.txs++
	m.locked = append(m.locked, loanID)
	m.mu.Unlock()
	if m.WithinLoanTxFn == nil {
		return ErrUnimplemented
	}
	return m.WithinLoanTxFn(ctx, loanID, fn)
}

// Txs is the number of transactions opened so far.
func (m *UoW) Txs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs
}

// Locked returns the loan ids passed to WithinLoanTx, in call order.
func (m *UoW) Locked() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.locked...)
}

// Passthrough runs every body directly on r. WithinLoanTx loads the loan
// through r.Loans.GetByIDForUpdate like the gorm unit of work.
func Passthrough(r uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(_ context.Context, fn func(uow.Repos) error) error { return fn(r) },
		WithinLoanTxFn: func(ctx context.Context, loanID uint64, fn func(uow.Repos, *loan.Loan) error) error {
			l, err := r.Loans.GetByIDForUpdate(ctx, loanID)
			if err != nil {
				return err
			}
			return fn(r, l)
		},
	}
}

// Wrap delegates to inner and lets hook swap repositories before each body
// runs, e.g. to inject a misbehaving asset ledger.
func Wrap(inner uow.UnitOfWork, hook func(uow.Repos) uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(ctx context.Context, fn func(uow.Repos) error) error {
			return inner.WithinTx(ctx, func(r uow.Repos) error { return fn(hook(r)) })
		},
		WithinLoanTxFn: func(ctx context.Context, loanID uint64, fn func(uow.Repos, *loan.Loan) error) error {
			return inner.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error { return fn(hook(r), l) })
		},
	}
}
