package loan

import "context"

type Repository interface {
	// Create assigns the next sequential ID
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// Row lock held until the enclosing transaction ends
	GetByIDForUpdate(ctx context.Context, id uint64) (*Loan, error)
	ListByBorrower(ctx context.Context, borrower string) ([]Loan, error)
	Save(ctx context.Context, l *Loan) error

	GetSettings(ctx context.Context, poolID uint64) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error
}
