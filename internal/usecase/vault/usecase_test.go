package vault_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabrieltemtsen/clenja/internal/domain/asset"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/internal/testutil/ledgertest"
	"github.com/gabrieltemtsen/clenja/internal/testutil/uowmock"
	vaultUC "github.com/gabrieltemtsen/clenja/internal/usecase/vault"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var u = ledgertest.Units

func deposit(t *testing.T, s *ledgertest.Stack, who string, amount money.Amount) money.Amount {
	t.Helper()
	s.Mint(t, who, amount)
	shares, err := s.Vault.Deposit(context.Background(), vaultUC.DepositInput{Caller: who, Amount: amount, Receiver: who})
	require.NoError(t, err)
	return shares
}

// sharesSum adds up every holder balance in the pool.
func sharesSum(t *testing.T, s *ledgertest.Stack) money.Amount {
	t.Helper()
	total := money.Zero()
	err := s.UoW.WithinTx(context.Background(), func(r uow.Repos) error {
		rows, err := r.Pools.ListShares(context.Background(), 1)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if total, err = total.Add(row.Shares); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return total
}

func TestDeposit_EmptyPoolMintsOneToOne(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()

	shares := deposit(t, s, ledgertest.Alice, u(1000))
	require.True(t, shares.Eq(u(1000)), "shares %s", shares)

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.Eq(u(1000)))
	require.True(t, p.TotalShares.Eq(u(1000)))
	require.True(t, p.SharePrice.Eq(vault.PriceScale), "price %s", p.SharePrice)

	require.True(t, s.Balance(t, ledgertest.Custody).Eq(u(1000)))
	require.True(t, s.Balance(t, ledgertest.Alice).IsZero())
}

func TestDeposit_OnBehalfOfReceiver(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Alice, u(50))

	_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: u(50), Receiver: ledgertest.Bob})
	require.NoError(t, err)

	bob, err := s.Vault.BalanceOf(ctx, ledgertest.Bob)
	require.NoError(t, err)
	require.True(t, bob.Shares.Eq(u(50)))
	alice, err := s.Vault.BalanceOf(ctx, ledgertest.Alice)
	require.NoError(t, err)
	require.True(t, alice.Shares.IsZero())
}

func TestDepositWithdraw_Rejections(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(100))
	deposit(t, s, ledgertest.Bob, u(1000))

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"zero deposit", func() error {
			_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: money.Zero(), Receiver: ledgertest.Alice})
			return err
		}, vault.ErrInvalidAmount},
		{"zero withdraw", func() error {
			_, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Alice, Amount: money.Zero(), Receiver: ledgertest.Alice, Owner: ledgertest.Alice})
			return err
		}, vault.ErrInvalidAmount},
		{"deposit without funds", func() error {
			_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Carol, Amount: u(1), Receiver: ledgertest.Carol})
			return err
		}, asset.ErrInsufficientBalance},
		{"withdraw for another owner", func() error {
			_, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Bob, Amount: u(10), Receiver: ledgertest.Bob, Owner: ledgertest.Alice})
			return err
		}, vault.ErrUnauthorized},
		{"withdraw above own shares", func() error {
			_, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Alice, Amount: u(200), Receiver: ledgertest.Alice, Owner: ledgertest.Alice})
			return err
		}, vault.ErrInsufficientShares},
		{"withdraw above liquidity", func() error {
			_, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Bob, Amount: u(1101), Receiver: ledgertest.Bob, Owner: ledgertest.Bob})
			return err
		}, vault.ErrInsufficientLiquidity},
		{"invalid receiver", func() error {
			_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: u(1), Receiver: "nope"})
			return err
		}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	// Nothing above may have moved the pool.
	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.Eq(u(1100)))
	require.True(t, sharesSum(t, s).Eq(p.TotalShares))
}

func TestDepositWithdraw_RoundTrip(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Bob, u(1000))

	x := money.FromUint64(123_456789)
	shares := deposit(t, s, ledgertest.Alice, x)
	back, err := s.Vault.ConvertToAssets(ctx, shares)
	require.NoError(t, err)
	require.False(t, back.Gt(x), "round trip must not favor the depositor")

	_, err = s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Alice, Amount: back, Receiver: ledgertest.Alice, Owner: ledgertest.Alice})
	require.NoError(t, err)
	require.True(t, s.Balance(t, ledgertest.Alice).Eq(back))

	pos, err := s.Vault.BalanceOf(ctx, ledgertest.Alice)
	require.NoError(t, err)
	require.True(t, pos.Shares.IsZero(), "left %s shares", pos.Shares)

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, sharesSum(t, s).Eq(p.TotalShares))
	require.True(t, p.SharePrice.Eq(vault.PriceScale))
}

func TestConvert_EmptyPool(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()

	shares, err := s.Vault.ConvertToShares(ctx, u(7))
	require.NoError(t, err)
	require.True(t, shares.Eq(u(7)))

	assets, err := s.Vault.ConvertToAssets(ctx, u(7))
	require.NoError(t, err)
	require.True(t, assets.IsZero())
}

func TestBindLoanManager_WriteOnce(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()

	// Bootstrap already bound the configured manager.
	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, ledgertest.Manager, p.LoanManager)

	err = s.Vault.BindLoanManager(ctx, ledgertest.Owner, ledgertest.Carol)
	require.ErrorIs(t, err, vault.ErrLoanManagerBound)

	err = s.Vault.BindLoanManager(ctx, ledgertest.Alice, ledgertest.Carol)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	p, err = s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.Equal(t, ledgertest.Manager, p.LoanManager)
}

func TestFundAndReceive_OnlyLoanManager(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(100))

	for _, caller := range []string{ledgertest.Owner, ledgertest.Operator, ledgertest.Alice} {
		err := s.UoW.WithinTx(ctx, func(r uow.Repos) error {
			return s.Vault.FundLoan(ctx, r, caller, 1, ledgertest.Bob, u(10))
		})
		require.ErrorIs(t, err, vault.ErrUnauthorized, "fund as %s", caller)

		err = s.UoW.WithinTx(ctx, func(r uow.Repos) error {
			return s.Vault.ReceiveRepayment(ctx, r, caller, 1, money.Zero(), u(10))
		})
		require.ErrorIs(t, err, vault.ErrUnauthorized, "receive as %s", caller)
	}

	err := s.UoW.WithinTx(ctx, func(r uow.Repos) error {
		return s.Vault.FundLoan(ctx, r, ledgertest.Manager, 1, ledgertest.Bob, u(101))
	})
	require.ErrorIs(t, err, vault.ErrInsufficientLiquidity)

	err = s.UoW.WithinTx(ctx, func(r uow.Repos) error {
		return s.Vault.FundLoan(ctx, r, ledgertest.Manager, 1, ledgertest.Bob, u(40))
	})
	require.NoError(t, err)

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.Eq(u(100)), "funding must not change total assets")
	require.True(t, p.OutstandingLoans.Eq(u(40)))
	require.True(t, p.AvailableLiquidity.Eq(u(60)))
	require.True(t, p.UtilizationBps.Eq(money.FromUint64(4000)))
	require.True(t, s.Balance(t, ledgertest.Bob).Eq(u(40)))
	require.True(t, s.Balance(t, ledgertest.Custody).Eq(u(60)))
}

func TestDeposit_ConcurrentCallersKeepTotals(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	holders := []string{ledgertest.Alice, ledgertest.Bob, ledgertest.Carol}
	for _, h := range holders {
		s.Mint(t, h, u(100))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		for _, h := range holders {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()
				_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: h, Amount: u(10), Receiver: h})
				errs <- err
			}(h)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.Eq(u(300)))
	require.True(t, sharesSum(t, s).Eq(p.TotalShares))
}

// reentrantAssets calls back into the vault from inside a transfer.
type reentrantAssets struct {
	asset.Ledger
	callback func(ctx context.Context) error
}

func (a *reentrantAssets) Transfer(ctx context.Context, from, to string, amount money.Amount) error {
	if err := a.callback(ctx); err != nil {
		return err
	}
	return a.Ledger.Transfer(ctx, from, to, amount)
}

func TestDeposit_ReentrantCallbackRejected(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	s.Mint(t, ledgertest.Alice, u(100))

	var v *vaultUC.Usecase
	var inner error
	hooked := uowmock.Wrap(s.UoW, func(r uow.Repos) uow.Repos {
		r.Assets = &reentrantAssets{Ledger: r.Assets, callback: func(ctx context.Context) error {
			_, inner = v.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: u(1), Receiver: ledgertest.Alice})
			return inner
		}}
		return r
	})
	v = vaultUC.NewUsecase(hooked, guard.New(guard.NewLock(), "vault"), 1, ledgertest.Owner, nil)

	_, err := v.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Alice, Amount: u(10), Receiver: ledgertest.Alice})
	require.ErrorIs(t, err, guard.ErrReentrant)
	require.ErrorIs(t, inner, guard.ErrReentrant)

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.IsZero())
	require.True(t, s.Balance(t, ledgertest.Alice).Eq(u(100)))
}

func TestEvents_NewestFirst(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(5))
	deposit(t, s, ledgertest.Bob, u(6))

	out, err := s.Vault.Events(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, ledgertest.Bob, out[0].Actor)
	require.True(t, out[0].Amount.Eq(u(6)))
	require.Equal(t, ledgertest.Alice, out[1].Actor)
}

// earnInterest books a funded-and-repaid loan that pays interest into the pool.
func earnInterest(t *testing.T, s *ledgertest.Stack, interest money.Amount) {
	t.Helper()
	ctx := context.Background()
	principal := u(10)
	inflow, err := principal.Add(interest)
	require.NoError(t, err)
	s.Mint(t, ledgertest.Custody, inflow)
	err = s.UoW.WithinTx(ctx, func(r uow.Repos) error {
		if err := s.Vault.FundLoan(ctx, r, ledgertest.Manager, 1, ledgertest.Bob, principal); err != nil {
			return err
		}
		return s.Vault.ReceiveRepayment(ctx, r, ledgertest.Manager, 1, principal, interest)
	})
	require.NoError(t, err)
}

func TestSharePrice_NeverFallsForOtherHolders(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(1000))
	earnInterest(t, s, money.FromUint64(7_000003))

	snapshot := func() (money.Amount, money.Amount) {
		pos, err := s.Vault.BalanceOf(ctx, ledgertest.Alice)
		require.NoError(t, err)
		p, err := s.Vault.Pool(ctx)
		require.NoError(t, err)
		return pos.Assets, p.SharePrice
	}
	aliceAssets, price := snapshot()
	require.True(t, price.Gt(vault.PriceScale), "interest must raise the price, got %s", price)

	withdraw := func(amount uint64) error {
		_, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{
			Caller: ledgertest.Bob, Amount: money.FromUint64(amount), Receiver: ledgertest.Bob, Owner: ledgertest.Bob,
		})
		return err
	}
	steps := []struct {
		name string
		run  func() error
	}{
		{"bob deposits odd amount", func() error { deposit(t, s, ledgertest.Bob, money.FromUint64(333_333_337)); return nil }},
		{"bob withdraws 7", func() error { return withdraw(7) }},
		{"bob deposits 999999", func() error { deposit(t, s, ledgertest.Bob, money.FromUint64(999_999)); return nil }},
		{"bob withdraws 123457", func() error { return withdraw(123_457) }},
		{"bob withdraws 1", func() error { return withdraw(1) }},
		{"bob deposits 3", func() error { deposit(t, s, ledgertest.Bob, money.FromUint64(3)); return nil }},
		{"bob withdraws 100000001", func() error { return withdraw(100_000_001) }},
	}
	for _, st := range steps {
		require.NoError(t, st.run(), st.name)
		gotAssets, gotPrice := snapshot()
		require.False(t, gotAssets.Lt(aliceAssets), "%s: alice assets fell %s -> %s", st.name, aliceAssets, gotAssets)
		require.False(t, gotPrice.Lt(price), "%s: share price fell %s -> %s", st.name, price, gotPrice)
		aliceAssets, price = gotAssets, gotPrice
	}

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, sharesSum(t, s).Eq(p.TotalShares))
}

func TestWithdraw_DustWithoutSharesIsLocked(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(3000))
	earnInterest(t, s, money.FromUint64(1))

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	all, err := p.TotalAssets.Sub(money.FromUint64(1))
	require.NoError(t, err)

	// Rounding up lets the last holder burn every share while one unit stays.
	burned, err := s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Alice, Amount: all, Receiver: ledgertest.Alice, Owner: ledgertest.Alice})
	require.NoError(t, err)
	require.True(t, burned.Eq(u(3000)), "burned %s", burned)
	p, err = s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalShares.IsZero())
	require.True(t, p.TotalAssets.Eq(money.FromUint64(1)))

	for _, who := range []string{ledgertest.Carol, ledgertest.Alice} {
		_, err = s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: who, Amount: money.FromUint64(1), Receiver: who, Owner: who})
		require.ErrorIs(t, err, vault.ErrInsufficientShares, "withdraw as %s", who)
	}
	require.True(t, s.Balance(t, ledgertest.Carol).IsZero())
	require.True(t, s.Balance(t, ledgertest.Custody).Eq(money.FromUint64(1)))
}

func TestCustodyAccount_NotACounterparty(t *testing.T) {
	s := ledgertest.New(t)
	ctx := context.Background()
	deposit(t, s, ledgertest.Alice, u(100))
	s.Mint(t, ledgertest.Custody, u(5))

	_, err := s.Vault.Deposit(ctx, vaultUC.DepositInput{Caller: ledgertest.Custody, Amount: u(5), Receiver: ledgertest.Custody})
	require.ErrorIs(t, err, vault.ErrCustodyAccount)

	_, err = s.Vault.Withdraw(ctx, vaultUC.WithdrawInput{Caller: ledgertest.Alice, Amount: u(1), Receiver: ledgertest.Custody, Owner: ledgertest.Alice})
	require.ErrorIs(t, err, vault.ErrCustodyAccount)

	err = s.UoW.WithinTx(ctx, func(r uow.Repos) error {
		return s.Vault.FundLoan(ctx, r, ledgertest.Manager, 1, ledgertest.Custody, u(1))
	})
	require.ErrorIs(t, err, vault.ErrCustodyAccount)

	p, err := s.Vault.Pool(ctx)
	require.NoError(t, err)
	require.True(t, p.TotalAssets.Eq(u(100)))
	require.True(t, p.OutstandingLoans.IsZero())
	require.True(t, s.Balance(t, ledgertest.Custody).Eq(u(105)))
}
