package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var (
	ErrPolicy        = errors.New("risk: loan rejected by policy")
	ErrInvalidRules  = errors.New("risk: invalid rules")
	ErrUnauthorized  = errors.New("risk: caller not authorized")
	ErrRulesNotFound = errors.New("risk: rules not configured")
)

// Rejection reasons, one per rule, in evaluation order.
const (
	ReasonNotVerified     = "borrower not verified"
	ReasonBelowMinAmount  = "principal below minimum"
	ReasonAboveMaxAmount  = "principal above maximum"
	ReasonBorrowerCap     = "principal exceeds per-borrower cap"
	ReasonUtilizationCap  = "utilization cap exceeded"
	ReasonZeroDuration    = "duration must be nonzero"
	ReasonDurationTooLong = "duration exceeds maximum"
	ReasonAprBelowMinimum = "APR below minimum"
	ReasonAprAboveMaximum = "APR above maximum"
)

// PolicyError carries the reason of the first rule a proposal failed.
type PolicyError struct{ Reason string }

func (e *PolicyError) Error() string        { return "risk: " + e.Reason }
func (e *PolicyError) Is(target error) bool { return target == ErrPolicy }

func reject(reason string) error { return &PolicyError{Reason: reason} }

// Verifier answers whether a principal passed off-chain verification.
type Verifier interface {
	IsVerified(ctx context.Context, principal string) (bool, error)
}

// Table: risk_rules. One row per pool.
type Rules struct {
	PoolID                  uint64       `gorm:"column:pool_id;primaryKey" json:"pool_id"`
	MaxBorrowerBps          money.Bps    `gorm:"column:max_borrower_bps;not null" json:"max_borrower_bps"`
	MaxUtilizationBps       money.Bps    `gorm:"column:max_utilization_bps;not null" json:"max_utilization_bps"`
	MaxLoanDuration         uint64       `gorm:"column:max_loan_duration;not null" json:"max_loan_duration"`
	MinAprBps               money.Bps    `gorm:"column:min_apr_bps;not null" json:"min_apr_bps"`
	MaxAprBps               money.Bps    `gorm:"column:max_apr_bps;not null" json:"max_apr_bps"`
	MinLoanAmount           money.Amount `gorm:"column:min_loan_amount;type:varchar(78);not null" json:"min_loan_amount"`
	MaxLoanAmount           money.Amount `gorm:"column:max_loan_amount;type:varchar(78);not null" json:"max_loan_amount"`
	RequireVerifiedBorrower bool         `gorm:"column:require_verified_borrower;not null" json:"require_verified_borrower"`
	// Name of the registered oracle; empty means none configured.
	VerificationOracle string    `gorm:"column:verification_oracle;size:32" json:"verification_oracle"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Rules) TableName() string { return "risk_rules" }

// Check rejects internally inconsistent rules.
func (r *Rules) Check() error {
	for _, f := range []struct {
		name string
		bps  money.Bps
	}{
		{"max_borrower_bps", r.MaxBorrowerBps},
		{"max_utilization_bps", r.MaxUtilizationBps},
		{"min_apr_bps", r.MinAprBps},
		{"max_apr_bps", r.MaxAprBps},
	} {
		if !f.bps.Valid() {
			return fmt.Errorf("%w: %s above %d", ErrInvalidRules, f.name, money.BpsDenominator)
		}
	}
	if r.MinAprBps > r.MaxAprBps {
		return fmt.Errorf("%w: min_apr_bps above max_apr_bps", ErrInvalidRules)
	}
	if r.MinLoanAmount.Gt(r.MaxLoanAmount) {
		return fmt.Errorf("%w: min_loan_amount above max_loan_amount", ErrInvalidRules)
	}
	return nil
}

// Proposal is a loan's terms plus the pool totals it is judged against.
type Proposal struct {
	Borrower        string
	Principal       money.Amount
	Duration        uint64
	AprBps          money.Bps
	PoolAssets      money.Amount
	PoolOutstanding money.Amount
}

// Validate runs the ordered rule set. A nil verifier means no oracle is
// configured. It returns a *PolicyError for a rejection; any other error is
// an oracle or arithmetic failure.
func (r *Rules) Validate(ctx context.Context, v Verifier, p Proposal) error {
	if r.RequireVerifiedBorrower && v != nil {
		ok, err := v.IsVerified(ctx, p.Borrower)
		if err != nil {
			return fmt.Errorf("risk: verification oracle: %w", err)
		}
		if !ok {
			return reject(ReasonNotVerified)
		}
	}

	if p.Principal.Lt(r.MinLoanAmount) {
		return reject(ReasonBelowMinAmount)
	}
	if p.Principal.Gt(r.MaxLoanAmount) {
		return reject(ReasonAboveMaxAmount)
	}

	if !p.PoolAssets.IsZero() {
		limit, err := money.MulBps(p.PoolAssets, r.MaxBorrowerBps)
		if err != nil {
			return err
		}
		if p.Principal.Gt(limit) {
			return reject(ReasonBorrowerCap)
		}

		projected, err := p.PoolOutstanding.Add(p.Principal)
		if err != nil {
			return err
		}
		util, err := money.RatioBps(projected, p.PoolAssets)
		if err != nil {
			return err
		}
		if util.Gt(money.FromUint64(uint64(r.MaxUtilizationBps))) {
			return reject(ReasonUtilizationCap)
		}
	}

	if p.Duration == 0 {
		return reject(ReasonZeroDuration)
	}
	if p.Duration > r.MaxLoanDuration {
		return reject(ReasonDurationTooLong)
	}

	if p.AprBps < r.MinAprBps {
		return reject(ReasonAprBelowMinimum)
	}
	if p.AprBps > r.MaxAprBps {
		return reject(ReasonAprAboveMaximum)
	}
	return nil
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (string, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}
