package approval

import (
	"time"

	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
)

// MaxListLimit caps list queries.
const MaxListLimit = 100

type ApproveInput struct {
	Caller string
	LoanID uint64
}

type ApprovalDTO struct {
	ApprovalID string          `json:"approval_id"`
	LoanID     uint64          `json:"loan_id"`
	OperatorID string          `json:"operator_id"`
	ApprovedAt time.Time       `json:"approved_at"`
	Loan       *loanUC.LoanDTO `json:"loan,omitempty"`
}
