package loan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gabrieltemtsen/clenja/internal/adapter/verifier"
	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/internal/testutil/ledgertest"
	approvalUC "github.com/gabrieltemtsen/clenja/internal/usecase/approval"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
	vaultUC "github.com/gabrieltemtsen/clenja/internal/usecase/vault"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var u = ledgertest.Units

const thirtyDays = 30 * ledgertest.Day * time.Second

// poolOf3000 is scenario 2's starting point: 3000 assets, 3000 shares.
func poolOf3000(t *testing.T, opts ...ledgertest.Option) *ledgertest.Stack {
	t.Helper()
	s := ledgertest.New(t, opts...)
	s.Mint(t, ledgertest.Alice, u(3000))
	_, err := s.Vault.Deposit(context.Background(), vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: u(3000), Receiver: ledgertest.Alice})
	require.NoError(t, err)
	return s
}

func request(t *testing.T, s *ledgertest.Stack, borrower string, principal money.Amount) *loanUC.LoanDTO {
	t.Helper()
	dto, err := s.Loans.RequestLoan(context.Background(), loanUC.RequestInput{
		Caller:    borrower,
		Principal: principal,
		Duration:  30 * ledgertest.Day,
		AprBps:    1200,
	})
	require.NoError(t, err)
	return dto
}

func approve(t *testing.T, s *ledgertest.Stack, loanID uint64) *approvalUC.ApprovalDTO {
	t.Helper()
	dto, err := s.Approval.ApproveAndDisburse(context.Background(), approvalUC.ApproveInput{Caller: ledgertest.Operator, LoanID: loanID})
	require.NoError(t, err)
	return dto
}

func repay(t *testing.T, s *ledgertest.Stack, payer string, loanID uint64, amount money.Amount) *loanUC.RepaymentDTO {
	t.Helper()
	out, err := s.Loans.Repay(context.Background(), loanUC.RepayInput{Caller: payer, LoanID: loanID, Amount: amount})
	require.NoError(t, err)
	return out
}

func pool(t *testing.T, s *ledgertest.Stack) *vaultUC.PoolDTO {
	t.Helper()
	p, err := s.Vault.Pool(context.Background())
	require.NoError(t, err)
	return p
}

// checkInvariants asserts the ledger-wide properties that must hold in
// every committed state.
func checkInvariants(t *testing.T, s *ledgertest.Stack) {
	t.Helper()
	ctx := context.Background()
	err := s.UoW.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPool(ctx, 1)
		if err != nil {
			return err
		}
		require.False(t, p.OutstandingLoans.Gt(p.TotalAssets), "outstanding above total assets")

		rows, err := r.Pools.ListShares(ctx, 1)
		if err != nil {
			return err
		}
		sum := money.Zero()
		for _, row := range rows {
			if sum, err = sum.Add(row.Shares); err != nil {
				return err
			}
		}
		require.True(t, sum.Eq(p.TotalShares), "share balances %s != total %s", sum, p.TotalShares)

		for _, who := range []string{ledgertest.Alice, ledgertest.Bob, ledgertest.Carol} {
			loans, err := r.Loans.ListByBorrower(ctx, who)
			if err != nil {
				return err
			}
			for _, l := range loans {
				require.False(t, l.PrincipalRepaid.Gt(l.Principal), "loan %d overpaid", l.ID)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestScenario_RequestDisburseRepayClose(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Bob, u(10))

	// Request and disburse 100 at 12% for 30 days.
	req := request(t, s, ledgertest.Bob, u(100))
	require.Equal(t, uint64(1), req.LoanID)
	require.Equal(t, loan.StateRequested, req.State)
	require.Zero(t, req.StartTime)
	require.Zero(t, req.LastPaymentTime)

	ap := approve(t, s, req.LoanID)
	require.Equal(t, loan.StateDisbursed, ap.Loan.State)
	require.Equal(t, ledgertest.Start.Unix(), ap.Loan.StartTime)
	require.Equal(t, ledgertest.Start.Unix(), ap.Loan.LastPaymentTime)

	p := pool(t, s)
	require.True(t, p.OutstandingLoans.Eq(u(100)))
	require.True(t, p.TotalAssets.Eq(u(3000)))
	require.True(t, s.Balance(t, ledgertest.Bob).Eq(u(110)))
	checkInvariants(t, s)

	// Thirty days of simple interest on the full principal.
	s.Clock.Advance(thirtyDays)
	due, err := s.Loans.AccruedInterest(ctx, req.LoanID)
	require.NoError(t, err)
	require.True(t, due.Eq(money.FromUint64(986301)), "accrued %s", due)

	priceBefore := p.SharePrice
	out := repay(t, s, ledgertest.Bob, req.LoanID, due)
	require.True(t, out.Principal.IsZero())
	require.True(t, out.Interest.Eq(due))
	require.True(t, out.Fee.Eq(money.FromUint64(98630)), "fee %s", out.Fee)
	require.True(t, out.Loan.PrincipalRepaid.IsZero())
	require.True(t, out.Loan.InterestPaid.Eq(due))
	require.True(t, out.Loan.AccruedInterest.IsZero())

	p = pool(t, s)
	require.True(t, p.TotalAssets.Eq(money.FromUint64(3000_000000+986301-98630)), "total assets %s", p.TotalAssets)
	require.True(t, p.OutstandingLoans.Eq(u(100)))
	require.False(t, p.SharePrice.Lt(priceBefore), "share price fell")
	require.True(t, s.Balance(t, ledgertest.Treasury).Eq(money.FromUint64(98630)))
	checkInvariants(t, s)

	// Full principal in a second call, then close.
	out = repay(t, s, ledgertest.Bob, req.LoanID, u(100))
	require.True(t, out.Principal.Eq(u(100)))
	require.True(t, out.Interest.IsZero())
	require.True(t, out.Loan.RemainingPrincipal.IsZero())

	p = pool(t, s)
	require.True(t, p.OutstandingLoans.IsZero())
	checkInvariants(t, s)

	closed, err := s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Bob, LoanID: req.LoanID})
	require.NoError(t, err)
	require.Equal(t, loan.StateClosed, closed.State)

	_, err = s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Bob, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrNotActive)

	_, err = s.Loans.Repay(ctx, loanUC.RepayInput{Caller: ledgertest.Bob, LoanID: req.LoanID, Amount: u(1)})
	require.ErrorIs(t, err, loan.ErrNotActive)
}

func TestWithdraw_InsufficientLiquidityWhileLent(t *testing.T) {
	s := poolOf3000(t)
	req := request(t, s, ledgertest.Bob, u(100))
	approve(t, s, req.LoanID)

	_, err := s.Vault.Withdraw(context.Background(), vaultUC.WithdrawInput{
		Caller: ledgertest.Alice, Amount: u(2901), Receiver: ledgertest.Alice, Owner: ledgertest.Alice,
	})
	require.ErrorIs(t, err, vault.ErrInsufficientLiquidity)
	require.NotErrorIs(t, err, vault.ErrInsufficientShares)

	_, err = s.Vault.Withdraw(context.Background(), vaultUC.WithdrawInput{
		Caller: ledgertest.Alice, Amount: u(2900), Receiver: ledgertest.Alice, Owner: ledgertest.Alice,
	})
	require.NoError(t, err)
	checkInvariants(t, s)
}

func TestRequestLoan_PolicyReasons(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		in     loanUC.RequestInput
		reason string
	}{
		{"apr below minimum", loanUC.RequestInput{Principal: u(100), Duration: ledgertest.Day, AprBps: 499}, risk.ReasonAprBelowMinimum},
		{"apr above maximum", loanUC.RequestInput{Principal: u(100), Duration: ledgertest.Day, AprBps: 3001}, risk.ReasonAprAboveMaximum},
		{"one above max amount", loanUC.RequestInput{Principal: money.FromUint64(120_000001), Duration: ledgertest.Day, AprBps: 1200}, risk.ReasonAboveMaxAmount},
		{"below min amount", loanUC.RequestInput{Principal: money.FromUint64(999999), Duration: ledgertest.Day, AprBps: 1200}, risk.ReasonBelowMinAmount},
		{"zero duration", loanUC.RequestInput{Principal: u(100), Duration: 0, AprBps: 1200}, risk.ReasonZeroDuration},
		{"duration too long", loanUC.RequestInput{Principal: u(100), Duration: 366 * ledgertest.Day, AprBps: 1200}, risk.ReasonDurationTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Caller = ledgertest.Bob
			_, err := s.Loans.RequestLoan(ctx, tc.in)
			require.ErrorIs(t, err, risk.ErrPolicy)
			reason, ok := risk.ReasonOf(err)
			require.True(t, ok)
			require.Equal(t, tc.reason, reason)
		})
	}

	// Exactly the maximum passes.
	_, err := s.Loans.RequestLoan(ctx, loanUC.RequestInput{Caller: ledgertest.Bob, Principal: u(120), Duration: ledgertest.Day, AprBps: 1200})
	require.NoError(t, err)

	_, err = s.Loans.RequestLoan(ctx, loanUC.RequestInput{Caller: ledgertest.Bob, Principal: money.Zero(), Duration: ledgertest.Day, AprBps: 1200})
	require.ErrorIs(t, err, loan.ErrInvalidAmount)

	loans, err := s.Loans.ListByBorrower(ctx, ledgertest.Bob)
	require.NoError(t, err)
	require.Len(t, loans, 1, "rejected requests must not be stored")
}

func TestApprove_RevalidatesAgainstCurrentPool(t *testing.T) {
	rules := ledgertest.DefaultRules()
	rules.MaxUtilizationBps = 500
	s := poolOf3000(t, ledgertest.WithRules(rules))
	ctx := context.Background()

	// Each passes alone: 100/3000 is about 333 bps.
	first := request(t, s, ledgertest.Bob, u(100))
	second := request(t, s, ledgertest.Carol, u(100))
	approve(t, s, first.LoanID)

	// Now (100+100)/3000 is about 666 bps.
	_, err := s.Approval.ApproveAndDisburse(ctx, approvalUC.ApproveInput{Caller: ledgertest.Operator, LoanID: second.LoanID})
	reason, ok := risk.ReasonOf(err)
	require.True(t, ok, "want policy error, got %v", err)
	require.Equal(t, risk.ReasonUtilizationCap, reason)

	got, err := s.Loans.Get(ctx, second.LoanID)
	require.NoError(t, err)
	require.Equal(t, loan.StateRequested, got.State)
	require.True(t, pool(t, s).OutstandingLoans.Eq(u(100)))
}

func TestApprove_Rejections(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	req := request(t, s, ledgertest.Bob, u(50))

	_, err := s.Approval.ApproveAndDisburse(ctx, approvalUC.ApproveInput{Caller: ledgertest.Owner, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrUnauthorized)

	_, err = s.Approval.ApproveAndDisburse(ctx, approvalUC.ApproveInput{Caller: ledgertest.Operator, LoanID: 99})
	require.ErrorIs(t, err, loan.ErrNotFound)

	approve(t, s, req.LoanID)
	_, err = s.Approval.ApproveAndDisburse(ctx, approvalUC.ApproveInput{Caller: ledgertest.Operator, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrAlreadyDisbursed)
	require.True(t, pool(t, s).OutstandingLoans.Eq(u(50)), "second approval must not fund again")
}

func TestRepay_Boundaries(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Bob, u(500))
	req := request(t, s, ledgertest.Bob, u(100))

	_, err := s.Loans.Repay(ctx, loanUC.RepayInput{Caller: ledgertest.Bob, LoanID: req.LoanID, Amount: u(1)})
	require.ErrorIs(t, err, loan.ErrNotDisbursed)

	approve(t, s, req.LoanID)
	_, err = s.Loans.Repay(ctx, loanUC.RepayInput{Caller: ledgertest.Bob, LoanID: req.LoanID, Amount: money.Zero()})
	require.ErrorIs(t, err, loan.ErrInvalidAmount)

	// Below the interest due, everything is interest.
	s.Clock.Advance(thirtyDays)
	out := repay(t, s, ledgertest.Bob, req.LoanID, money.FromUint64(1000))
	require.True(t, out.Principal.IsZero())
	require.True(t, out.Interest.Eq(money.FromUint64(1000)))

	// Overpaying only pulls what is owed.
	s.Clock.Advance(thirtyDays)
	owed, err := s.Loans.TotalOwed(ctx, req.LoanID)
	require.NoError(t, err)
	before := s.Balance(t, ledgertest.Bob)

	out = repay(t, s, ledgertest.Bob, req.LoanID, u(400))
	require.True(t, out.Pulled.Eq(owed), "pulled %s, owed %s", out.Pulled, owed)
	spent, err := before.Sub(s.Balance(t, ledgertest.Bob))
	require.NoError(t, err)
	require.True(t, spent.Eq(owed))
	require.True(t, out.Loan.RemainingPrincipal.IsZero())
	require.True(t, out.Loan.AccruedInterest.IsZero())
	require.True(t, out.Loan.TotalOwed.IsZero())
	checkInvariants(t, s)
}

func TestRepay_ExactTotalOwedClearsLoan(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Carol, u(200))
	req := request(t, s, ledgertest.Bob, u(100))
	approve(t, s, req.LoanID)
	s.Clock.Advance(45 * ledgertest.Day * time.Second)

	owed, err := s.Loans.TotalOwed(ctx, req.LoanID)
	require.NoError(t, err)

	// Anyone may pay down a loan.
	out := repay(t, s, ledgertest.Carol, req.LoanID, owed)
	require.True(t, out.Pulled.Eq(owed))

	accrued, err := s.Loans.AccruedInterest(ctx, req.LoanID)
	require.NoError(t, err)
	require.True(t, accrued.IsZero())
	got, err := s.Loans.Get(ctx, req.LoanID)
	require.NoError(t, err)
	require.True(t, got.RemainingPrincipal.IsZero())
}

func TestClose_IgnoresInterestAfterLastPayment(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Bob, u(10))
	req := request(t, s, ledgertest.Bob, u(100))
	approve(t, s, req.LoanID)

	// Principal only, straight after disbursement: no interest yet.
	out := repay(t, s, ledgertest.Bob, req.LoanID, u(100))
	require.True(t, out.Interest.IsZero())

	_, err := s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Alice, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrUnauthorized)

	// No principal remains, so nothing accrues and close needs no interest.
	s.Clock.Advance(thirtyDays)
	closed, err := s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Operator, LoanID: req.LoanID})
	require.NoError(t, err)
	require.False(t, closed.Active)
}

func TestClose_RequiresFullPrincipal(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Bob, u(10))
	req := request(t, s, ledgertest.Bob, u(100))

	_, err := s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Bob, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrNotDisbursed)

	approve(t, s, req.LoanID)
	repay(t, s, ledgertest.Bob, req.LoanID, u(60))
	_, err = s.Loans.Close(ctx, loanUC.CloseInput{Caller: ledgertest.Bob, LoanID: req.LoanID})
	require.ErrorIs(t, err, loan.ErrNotFullyRepaid)
}

func TestRequestLoan_VerificationOracle(t *testing.T) {
	rules := ledgertest.DefaultRules()
	rules.RequireVerifiedBorrower = true
	rules.VerificationOracle = verifier.NameStatic
	static, err := verifier.NewStatic([]string{ledgertest.Bob})
	require.NoError(t, err)
	s := poolOf3000(t,
		ledgertest.WithRules(rules),
		ledgertest.WithOracles(map[string]risk.Verifier{verifier.NameStatic: static}),
	)
	ctx := context.Background()

	request(t, s, ledgertest.Bob, u(10))
	_, err = s.Loans.RequestLoan(ctx, loanUC.RequestInput{Caller: ledgertest.Carol, Principal: u(10), Duration: ledgertest.Day, AprBps: 1200})
	reason, ok := risk.ReasonOf(err)
	require.True(t, ok, "want policy error, got %v", err)
	require.Equal(t, risk.ReasonNotVerified, reason)
}

func TestFeeSettings_OwnerOnly(t *testing.T) {
	s := poolOf3000(t)
	ctx := context.Background()

	_, err := s.Loans.UpdateFeeSettings(ctx, loanUC.FeeInput{Caller: ledgertest.Alice, AgentFeeBps: 0, Treasury: ledgertest.Carol})
	require.ErrorIs(t, err, loan.ErrUnauthorized)
	_, err = s.Loans.UpdateFeeSettings(ctx, loanUC.FeeInput{Caller: ledgertest.Owner, AgentFeeBps: 10001, Treasury: ledgertest.Carol})
	require.ErrorIs(t, err, loan.ErrInvalidFee)

	got, err := s.Loans.UpdateFeeSettings(ctx, loanUC.FeeInput{Caller: ledgertest.Owner, AgentFeeBps: 0, Treasury: ledgertest.Carol})
	require.NoError(t, err)
	require.Equal(t, ledgertest.Carol, got.Treasury)

	// With no fee, all interest goes to the pool.
	s.Mint(t, ledgertest.Bob, u(10))
	req := request(t, s, ledgertest.Bob, u(100))
	approve(t, s, req.LoanID)
	s.Clock.Advance(thirtyDays)
	out := repay(t, s, ledgertest.Bob, req.LoanID, u(1))
	require.True(t, out.Fee.IsZero())
	require.True(t, out.ToVault.Eq(out.Pulled))
	require.True(t, s.Balance(t, ledgertest.Carol).IsZero())
}

func TestRepay_ByTreasuryKeepsItsFee(t *testing.T) {
	s := poolOf3000(t)
	s.Mint(t, ledgertest.Treasury, u(200))
	req := request(t, s, ledgertest.Bob, u(100))
	approve(t, s, req.LoanID)
	s.Clock.Advance(thirtyDays)

	out := repay(t, s, ledgertest.Treasury, req.LoanID, u(500))
	require.Equal(t, "100986301", out.Pulled.String())
	require.Equal(t, "98630", out.Fee.String())

	// The fee leg moves from the treasury to itself.
	want := money.FromUint64(200_000000 - 100_986301 + 98630)
	require.True(t, s.Balance(t, ledgertest.Treasury).Eq(want), "treasury %s", s.Balance(t, ledgertest.Treasury))
	checkInvariants(t, s)
}
