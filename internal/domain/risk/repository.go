package risk

import "context"

type Repository interface {
	GetRules(ctx context.Context, poolID uint64) (*Rules, error)
	SaveRules(ctx context.Context, r *Rules) error
}
