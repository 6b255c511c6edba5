package gormrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	vaultDomain "github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type PoolRepository struct{ db *gorm.DB }

func NewPoolRepository(db *gorm.DB) *PoolRepository { return &PoolRepository{db: db} }

func (r *PoolRepository) CreatePool(ctx context.Context, p *vaultDomain.Pool) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PoolRepository) GetPool(ctx context.Context, poolID uint64) (*vaultDomain.Pool, error) {
	var out vaultDomain.Pool
	if err := r.db.WithContext(ctx).Where("id = ?", poolID).First(&out).Error; err != nil {
		return nil, notFound(err, vaultDomain.ErrPoolNotFound)
	}
	return &out, nil
}

func (r *PoolRepository) GetPoolForUpdate(ctx context.Context, poolID uint64) (*vaultDomain.Pool, error) {
	var out vaultDomain.Pool
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", poolID).
		First(&out).Error
	if err != nil {
		return nil, notFound(err, vaultDomain.ErrPoolNotFound)
	}
	return &out, nil
}

func (r *PoolRepository) SavePool(ctx context.Context, p *vaultDomain.Pool) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PoolRepository) GetShares(ctx context.Context, poolID uint64, holder string) (money.Amount, error) {
	var out vaultDomain.ShareBalance
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND holder = ?", poolID, holder).
		First(&out).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return money.Zero(), nil
	case err != nil:
		return money.Zero(), err
	}
	return out.Shares, nil
}

func (r *PoolRepository) SetShares(ctx context.Context, poolID uint64, holder string, shares money.Amount) error {
	row := &vaultDomain.ShareBalance{PoolID: poolID, Holder: holder, Shares: shares}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pool_id"}, {Name: "holder"}},
			DoUpdates: clause.AssignmentColumns([]string{"shares", "updated_at"}),
		}).
		Create(row).Error
}

func (r *PoolRepository) ListShares(ctx context.Context, poolID uint64) ([]vaultDomain.ShareBalance, error) {
	var out []vaultDomain.ShareBalance
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("holder ASC").
		Find(&out).Error
	return out, err
}
