package approval

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("approval not found")
)

// Table: approvals. At most one per loan, written when the loan is disbursed.
type Approval struct {
	// Internal numeric PK
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Public identifier (32-char lowercase hex)
	ApprovalID string `gorm:"column:approval_id;type:char(32);not null;uniqueIndex:ux_approvals_approval_id" json:"approval_id"`
	// FK to loans.id
	LoanID     uint64    `gorm:"column:loan_id;not null;uniqueIndex:ux_approvals_loan" json:"loan_id"`
	OperatorID string    `gorm:"column:operator_id;size:42;not null;index:ix_approvals_operator" json:"operator_id"`
	ApprovedAt time.Time `gorm:"column:approved_at;not null" json:"approved_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Approval) TableName() string { return "approvals" }
