package gormrepo

import (
	"context"

	"gorm.io/gorm"

	riskDomain "github.com/gabrieltemtsen/clenja/internal/domain/risk"
)

type RulesRepository struct{ db *gorm.DB }

func NewRulesRepository(db *gorm.DB) *RulesRepository { return &RulesRepository{db: db} }

func (r *RulesRepository) GetRules(ctx context.Context, poolID uint64) (*riskDomain.Rules, error) {
	var out riskDomain.Rules
	if err := r.db.WithContext(ctx).Where("pool_id = ?", poolID).First(&out).Error; err != nil {
		return nil, notFound(err, riskDomain.ErrRulesNotFound)
	}
	return &out, nil
}

func (r *RulesRepository) SaveRules(ctx context.Context, rules *riskDomain.Rules) error {
	return r.db.WithContext(ctx).Save(rules).Error
}
