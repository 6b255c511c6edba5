package journal

import (
	"context"
	"time"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type Kind string

const (
	KindDeposit           Kind = "deposit"
	KindWithdraw          Kind = "withdraw"
	KindLoanManagerBound  Kind = "loan_manager_bound"
	KindLoanRequested     Kind = "loan_requested"
	KindLoanDisbursed     Kind = "loan_disbursed"
	KindLoanFunded        Kind = "loan_funded"
	KindRepayment         Kind = "repayment"
	KindRepaymentReceived Kind = "repayment_received"
	KindLoanClosed        Kind = "loan_closed"
	KindRulesUpdated      Kind = "rules_updated"
	KindFeeUpdated        Kind = "fee_updated"
)

// Table: journal_entries. Append-only; one row per committed transition.
type Entry struct {
	ID           uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	EntryID      string       `gorm:"column:entry_id;type:char(32);not null;uniqueIndex" json:"entry_id"`
	PoolID       uint64       `gorm:"column:pool_id;not null;index" json:"pool_id"`
	Kind         Kind         `gorm:"column:kind;size:32;not null;index" json:"kind"`
	LoanID       uint64       `gorm:"column:loan_id;not null;default:0;index" json:"loan_id,omitempty"`
	Actor        string       `gorm:"column:actor;size:42;not null" json:"actor"`
	Counterparty string       `gorm:"column:counterparty;size:42" json:"counterparty,omitempty"`
	Amount       money.Amount `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Shares       money.Amount `gorm:"column:shares;type:varchar(78);not null" json:"shares"`
	Principal    money.Amount `gorm:"column:principal;type:varchar(78);not null" json:"principal"`
	Interest     money.Amount `gorm:"column:interest;type:varchar(78);not null" json:"interest"`
	Fee          money.Amount `gorm:"column:fee;type:varchar(78);not null" json:"fee"`
	CreatedAt    time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Entry) TableName() string { return "journal_entries" }

type Repository interface {
	// Append assigns EntryID when empty
	Append(ctx context.Context, e *Entry) error
	ListByLoan(ctx context.Context, loanID uint64) ([]Entry, error)
	// Newest first
	Recent(ctx context.Context, poolID uint64, limit int) ([]Entry, error)
}
