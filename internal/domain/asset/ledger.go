// Package asset is the fungible-asset transfer primitive the ledger pulls
// from and pushes to. Implementations run inside the caller's unit of work;
// a failed transfer aborts the enclosing operation.
package asset

import (
	"context"
	"errors"
	"time"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var (
	ErrInsufficientBalance = errors.New("asset: insufficient balance")
)

type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount money.Amount) error
	BalanceOf(ctx context.Context, account string) (money.Amount, error)
}

// Table: asset_balances
type Balance struct {
	Account   string       `gorm:"column:account;size:42;primaryKey"`
	Amount    money.Amount `gorm:"column:amount;type:varchar(78);not null"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Balance) TableName() string { return "asset_balances" }
