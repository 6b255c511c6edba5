package gormrepo

import (
	"context"

	"gorm.io/gorm"

	journalDomain "github.com/gabrieltemtsen/clenja/internal/domain/journal"
	"github.com/gabrieltemtsen/clenja/pkg/id"
)

type JournalRepository struct{ db *gorm.DB }

func NewJournalRepository(db *gorm.DB) *JournalRepository { return &JournalRepository{db: db} }

func (r *JournalRepository) Append(ctx context.Context, e *journalDomain.Entry) error {
	if e.EntryID == "" {
		e.EntryID = id.NewID32()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *JournalRepository) ListByLoan(ctx context.Context, loanID uint64) ([]journalDomain.Entry, error) {
	var out []journalDomain.Entry
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *JournalRepository) Recent(ctx context.Context, poolID uint64, limit int) ([]journalDomain.Entry, error) {
	var out []journalDomain.Entry
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
