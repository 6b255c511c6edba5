package vault

import (
	"context"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type Repository interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, poolID uint64) (*Pool, error)
	// Lock the pool row for the rest of the transaction
	GetPoolForUpdate(ctx context.Context, poolID uint64) (*Pool, error)
	SavePool(ctx context.Context, p *Pool) error

	// Missing holders have a zero balance
	GetShares(ctx context.Context, poolID uint64, holder string) (money.Amount, error)
	SetShares(ctx context.Context, poolID uint64, holder string, shares money.Amount) error
	ListShares(ctx context.Context, poolID uint64) ([]ShareBalance, error)
}
