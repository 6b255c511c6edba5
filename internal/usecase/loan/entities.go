package loan

import (
	"time"

	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type RequestInput struct {
	Caller    string
	Principal money.Amount
	// Seconds
	Duration uint64
	AprBps   money.Bps
	Metadata string
}

type RepayInput struct {
	Caller string
	LoanID uint64
	Amount money.Amount
}

type CloseInput struct {
	Caller string
	LoanID uint64
}

type FeeInput struct {
	Caller      string
	AgentFeeBps money.Bps
	Treasury    string
}

// Roles are the fixed identities the ledger checks callers against.
type Roles struct {
	Owner       string
	Operator    string
	LoanManager string
}

type LoanDTO struct {
	LoanID             uint64       `json:"loan_id"`
	Borrower           string       `json:"borrower"`
	State              loan.State   `json:"state"`
	Principal          money.Amount `json:"principal"`
	PrincipalRepaid    money.Amount `json:"principal_repaid"`
	InterestPaid       money.Amount `json:"interest_paid"`
	RemainingPrincipal money.Amount `json:"remaining_principal"`
	AccruedInterest    money.Amount `json:"accrued_interest"`
	TotalOwed          money.Amount `json:"total_owed"`
	AprBps             money.Bps    `json:"apr_bps"`
	Duration           uint64       `json:"duration"`
	StartTime          int64        `json:"start_time"`
	LastPaymentTime    int64        `json:"last_payment_time"`
	Active             bool         `json:"active"`
	Disbursed          bool         `json:"disbursed"`
	Metadata           string       `json:"metadata,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

type RepaymentDTO struct {
	LoanID uint64 `json:"loan_id"`
	loan.Split
	Loan *LoanDTO `json:"loan"`
}
