package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/internal/domain/journal"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
)

// Usecase owns the pool's rule set and the oracles rules may reference.
type Usecase struct {
	uow     uow.UnitOfWork
	guard   *guard.Guard
	poolID  uint64
	owner   string
	oracles map[string]risk.Verifier
	log     logrus.FieldLogger
}

func NewUsecase(tx uow.UnitOfWork, g *guard.Guard, poolID uint64, owner string, oracles map[string]risk.Verifier, log logrus.FieldLogger) *Usecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if oracles == nil {
		oracles = map[string]risk.Verifier{}
	}
	return &Usecase{uow: tx, guard: g, poolID: poolID, owner: owner, oracles: oracles, log: log.WithField("component", "risk")}
}

func (u *Usecase) check(r *risk.Rules) error {
	if err := r.Check(); err != nil {
		return err
	}
	if r.VerificationOracle != "" {
		if _, ok := u.oracles[r.VerificationOracle]; !ok {
			return fmt.Errorf("%w: unknown verification oracle %q", risk.ErrInvalidRules, r.VerificationOracle)
		}
	}
	return nil
}

// Seed stores initial rules unless the pool already has some.
func (u *Usecase) Seed(ctx context.Context, initial risk.Rules) error {
	initial.PoolID = u.poolID
	if err := u.check(&initial); err != nil {
		return err
	}
	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		_, err := r.Rules.GetRules(ctx, u.poolID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, risk.ErrRulesNotFound):
			return err
		}
		return r.Rules.SaveRules(ctx, &initial)
	})
}

func (u *Usecase) Rules(ctx context.Context) (*risk.Rules, error) {
	var out *risk.Rules
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Rules.GetRules(ctx, u.poolID)
		return err
	})
	return out, err
}

// UpdateRules merges patch onto the current rules and commits the result
// only if it is consistent.
func (u *Usecase) UpdateRules(ctx context.Context, caller string, patch RulesPatch) (*risk.Rules, error) {
	if !address.Equal(caller, u.owner) {
		return nil, risk.ErrUnauthorized
	}
	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var out *risk.Rules
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		cur, err := r.Rules.GetRules(ctx, u.poolID)
		if err != nil {
			return err
		}
		next := *cur
		apply(&next, patch)
		if err := u.check(&next); err != nil {
			return err
		}
		if err := r.Rules.SaveRules(ctx, &next); err != nil {
			return err
		}
		out = &next
		return r.Journal.Append(ctx, &journal.Entry{
			PoolID: u.poolID,
			Kind:   journal.KindRulesUpdated,
			Actor:  u.owner,
		})
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{
		"max_borrower_bps":    out.MaxBorrowerBps,
		"max_utilization_bps": out.MaxUtilizationBps,
		"min_apr_bps":         out.MinAprBps,
		"max_apr_bps":         out.MaxAprBps,
	}).Info("risk rules updated")
	return out, nil
}

func apply(r *risk.Rules, p RulesPatch) {
	if p.MaxBorrowerBps != nil {
		r.MaxBorrowerBps = *p.MaxBorrowerBps
	}
	if p.MaxUtilizationBps != nil {
		r.MaxUtilizationBps = *p.MaxUtilizationBps
	}
	if p.MaxLoanDuration != nil {
		r.MaxLoanDuration = *p.MaxLoanDuration
	}
	if p.MinAprBps != nil {
		r.MinAprBps = *p.MinAprBps
	}
	if p.MaxAprBps != nil {
		r.MaxAprBps = *p.MaxAprBps
	}
	if p.MinLoanAmount != nil {
		r.MinLoanAmount = *p.MinLoanAmount
	}
	if p.MaxLoanAmount != nil {
		r.MaxLoanAmount = *p.MaxLoanAmount
	}
	if p.RequireVerifiedBorrower != nil {
		r.RequireVerifiedBorrower = *p.RequireVerifiedBorrower
	}
	if p.VerificationOracle != nil {
		r.VerificationOracle = *p.VerificationOracle
	}
}

// Validate judges p against the rules stored in r. A rule set naming an
// oracle that is not registered fails closed.
func (u *Usecase) Validate(ctx context.Context, r uow.Repos, p risk.Proposal) error {
	rules, err := r.Rules.GetRules(ctx, u.poolID)
	if err != nil {
		return err
	}
	var v risk.Verifier
	if rules.VerificationOracle != "" {
		var ok bool
		if v, ok = u.oracles[rules.VerificationOracle]; !ok {
			return fmt.Errorf("%w: unknown verification oracle %q", risk.ErrInvalidRules, rules.VerificationOracle)
		}
	}
	return rules.Validate(ctx, v, p)
}
