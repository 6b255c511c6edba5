package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	assetDomain "github.com/gabrieltemtsen/clenja/internal/domain/asset"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// AssetLedger is a database-backed fungible token ledger.
type AssetLedger struct{ db *gorm.DB }

func NewAssetLedger(db *gorm.DB) *AssetLedger { return &AssetLedger{db: db} }

func (r *AssetLedger) balance(ctx context.Context, account string, lock bool) (money.Amount, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out assetDomain.Balance
	err := q.Where("account = ?", account).First(&out).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return money.Zero(), nil
	case err != nil:
		return money.Zero(), err
	}
	return out.Amount, nil
}

func (r *AssetLedger) put(ctx context.Context, account string, amount money.Amount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&assetDomain.Balance{Account: account, Amount: amount}).Error
}

func (r *AssetLedger) BalanceOf(ctx context.Context, account string) (money.Amount, error) {
	return r.balance(ctx, account, false)
}

// Transfer moves amount from one account to another. A zero amount is a
// no-op, and so is a transfer to self once the balance covers it.
func (r *AssetLedger) Transfer(ctx context.Context, from, to string, amount money.Amount) error {
	if amount.IsZero() {
		return nil
	}
	src, err := r.balance(ctx, from, true)
	if err != nil {
		return err
	}
	if src.Lt(amount) {
		return assetDomain.ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	dst, err := r.balance(ctx, to, true)
	if err != nil {
		return err
	}
	if src, err = src.Sub(amount); err != nil {
		return err
	}
	if dst, err = dst.Add(amount); err != nil {
		return err
	}
	if err := r.put(ctx, from, src); err != nil {
		return err
	}
	return r.put(ctx, to, dst)
}

// Credit mints amount into account.
func (r *AssetLedger) Credit(ctx context.Context, account string, amount money.Amount) error {
	bal, err := r.balance(ctx, account, true)
	if err != nil {
		return err
	}
	if bal, err = bal.Add(amount); err != nil {
		return err
	}
	return r.put(ctx, account, bal)
}
