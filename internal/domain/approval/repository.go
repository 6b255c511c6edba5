package approval

import "context"

type Repository interface {
	// Create fails on a second approval for the same loan (unique loan_id).
	Create(ctx context.Context, a *Approval) error

	GetByLoanID(ctx context.Context, loanID uint64) (*Approval, error)
	GetByApprovalID(ctx context.Context, approvalID string) (*Approval, error)

	// ListByOperator is newest first.
	ListByOperator(ctx context.Context, operator string, limit int) ([]Approval, error)
}
