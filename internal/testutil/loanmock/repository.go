package loanmock

import (
	"context"

	domain "github.com/gabrieltemtsen/clenja/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to no-ops; reads default to the matching not-found error.
type Repo struct {
	CreateFn           func(ctx context.Context, l *domain.Loan) error
	GetByIDFn          func(ctx context.Context, id uint64) (*domain.Loan, error)
	GetByIDForUpdateFn func(ctx context.Context, id uint64) (*domain.Loan, error)
	ListByBorrowerFn   func(ctx context.Context, borrower string) ([]domain.Loan, error)
	SaveFn             func(ctx context.Context, l *domain.Loan) error
	GetSettingsFn      func(ctx context.Context, poolID uint64) (*domain.Settings, error)
	SaveSettingsFn     func(ctx context.Context, s *domain.Settings) error
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.Loan, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *Repo) ListByBorrower(ctx context.Context, borrower string) ([]domain.Loan, error) {
	if m.ListByBorrowerFn != nil {
		return m.ListByBorrowerFn(ctx, borrower)
	}
	return nil, nil
}

func (m *Repo) Save(ctx context.Context, l *domain.Loan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetSettings(ctx context.Context, poolID uint64) (*domain.Settings, error) {
	if m.GetSettingsFn != nil {
		return m.GetSettingsFn(ctx, poolID)
	}
	return nil, domain.ErrSettingsNotFound
}

func (m *Repo) SaveSettings(ctx context.Context, s *domain.Settings) error {
	if m.SaveSettingsFn != nil {
		return m.SaveSettingsFn(ctx, s)
	}
	return nil
}
