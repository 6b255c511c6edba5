package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// rulesFile mirrors risk.Rules with amounts as decimal strings.
type rulesFile struct {
	MaxBorrowerBps          uint64 `toml:"max_borrower_bps"`
	MaxUtilizationBps       uint64 `toml:"max_utilization_bps"`
	MaxLoanDuration         uint64 `toml:"max_loan_duration"`
	MinAprBps               uint64 `toml:"min_apr_bps"`
	MaxAprBps               uint64 `toml:"max_apr_bps"`
	MinLoanAmount           string `toml:"min_loan_amount"`
	MaxLoanAmount           string `toml:"max_loan_amount"`
	RequireVerifiedBorrower bool   `toml:"require_verified_borrower"`
	VerificationOracle      string `toml:"verification_oracle"`
}

// DefaultRules are seeded when no rules file is configured.
func DefaultRules() risk.Rules {
	return risk.Rules{
		MaxBorrowerBps:    2000,
		MaxUtilizationBps: 8000,
		MaxLoanDuration:   365 * 24 * 3600,
		MinAprBps:         100,
		MaxAprBps:         5000,
		MinLoanAmount:     money.FromUint64(1),
		MaxLoanAmount:     money.FromUint64(1_000_000_000_000),
	}
}

// LoadRules reads initial risk rules from a TOML file. Keys missing from the
// file keep their DefaultRules value; unknown keys are rejected.
func LoadRules(path string) (risk.Rules, error) {
	def := DefaultRules()
	if path == "" {
		return def, nil
	}

	f := rulesFile{
		MaxBorrowerBps:    uint64(def.MaxBorrowerBps),
		MaxUtilizationBps: uint64(def.MaxUtilizationBps),
		MaxLoanDuration:   def.MaxLoanDuration,
		MinAprBps:         uint64(def.MinAprBps),
		MaxAprBps:         uint64(def.MaxAprBps),
		MinLoanAmount:     def.MinLoanAmount.String(),
		MaxLoanAmount:     def.MaxLoanAmount.String(),
	}
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return risk.Rules{}, fmt.Errorf("risk rules %s: %w", path, err)
	}
	if und := meta.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return risk.Rules{}, fmt.Errorf("risk rules %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	minAmt, err := money.Parse(f.MinLoanAmount)
	if err != nil {
		return risk.Rules{}, fmt.Errorf("risk rules %s: min_loan_amount: %w", path, err)
	}
	maxAmt, err := money.Parse(f.MaxLoanAmount)
	if err != nil {
		return risk.Rules{}, fmt.Errorf("risk rules %s: max_loan_amount: %w", path, err)
	}
	r := risk.Rules{
		MaxBorrowerBps:          money.Bps(f.MaxBorrowerBps),
		MaxUtilizationBps:       money.Bps(f.MaxUtilizationBps),
		MaxLoanDuration:         f.MaxLoanDuration,
		MinAprBps:               money.Bps(f.MinAprBps),
		MaxAprBps:               money.Bps(f.MaxAprBps),
		MinLoanAmount:           minAmt,
		MaxLoanAmount:           maxAmt,
		RequireVerifiedBorrower: f.RequireVerifiedBorrower,
		VerificationOracle:      strings.TrimSpace(f.VerificationOracle),
	}
	if err := r.Check(); err != nil {
		return risk.Rules{}, fmt.Errorf("risk rules %s: %w", path, err)
	}
	return r, nil
}
