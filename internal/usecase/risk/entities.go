package risk

import "github.com/gabrieltemtsen/clenja/pkg/money"

// RulesPatch holds the fields to change; nil fields keep their current value.
type RulesPatch struct {
	MaxBorrowerBps          *money.Bps    `json:"max_borrower_bps"`
	MaxUtilizationBps       *money.Bps    `json:"max_utilization_bps"`
	MaxLoanDuration         *uint64       `json:"max_loan_duration"`
	MinAprBps               *money.Bps    `json:"min_apr_bps"`
	MaxAprBps               *money.Bps    `json:"max_apr_bps"`
	MinLoanAmount           *money.Amount `json:"min_loan_amount"`
	MaxLoanAmount           *money.Amount `json:"max_loan_amount"`
	RequireVerifiedBorrower *bool         `json:"require_verified_borrower"`
	VerificationOracle      *string       `json:"verification_oracle"`
}
