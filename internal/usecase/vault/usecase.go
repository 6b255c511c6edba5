package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/internal/domain/journal"
	"github.com/gabrieltemtsen/clenja/internal/domain/uow"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Usecase is the share-based vault over one pool.
type Usecase struct {
	uow    uow.UnitOfWork
	guard  *guard.Guard
	poolID uint64
	owner  string
	log    logrus.FieldLogger
}

func NewUsecase(tx uow.UnitOfWork, g *guard.Guard, poolID uint64, owner string, log logrus.FieldLogger) *Usecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Usecase{uow: tx, guard: g, poolID: poolID, owner: owner, log: log.WithField("component", "vault")}
}

func (u *Usecase) PoolID() uint64 { return u.poolID }

// Init creates the pool row if it does not exist yet.
func (u *Usecase) Init(ctx context.Context, asset, custody string) error {
	custody, err := address.Normalize(custody)
	if err != nil {
		return err
	}
	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		_, err := r.Pools.GetPool(ctx, u.poolID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, vault.ErrPoolNotFound):
			return err
		}
		p := &vault.Pool{
			ID:               u.poolID,
			Asset:            asset,
			Custody:          custody,
			TotalAssets:      money.Zero(),
			TotalShares:      money.Zero(),
			OutstandingLoans: money.Zero(),
		}
		if err := r.Pools.CreatePool(ctx, p); err != nil {
			return err
		}
		u.log.WithFields(logrus.Fields{"pool_id": u.poolID, "asset": asset, "custody": custody}).Info("pool created")
		return nil
	})
}

func (u *Usecase) Deposit(ctx context.Context, in DepositInput) (money.Amount, error) {
	if in.Amount.IsZero() {
		return money.Zero(), vault.ErrInvalidAmount
	}
	caller, err := address.Normalize(in.Caller)
	if err != nil {
		return money.Zero(), err
	}
	receiver, err := address.Normalize(in.Receiver)
	if err != nil {
		return money.Zero(), err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return money.Zero(), err
	}
	defer release()

	var minted money.Amount
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPoolForUpdate(ctx, u.poolID)
		if err != nil {
			return err
		}
		if caller == p.Custody {
			return vault.ErrCustodyAccount
		}
		shares, err := p.ConvertToShares(in.Amount)
		if err != nil {
			return err
		}
		if shares.IsZero() {
			return vault.ErrZeroShares
		}

		next := p.Clone()
		if next.TotalAssets, err = p.TotalAssets.Add(in.Amount); err != nil {
			return err
		}
		if next.TotalShares, err = p.TotalShares.Add(shares); err != nil {
			return err
		}
		held, err := r.Pools.GetShares(ctx, u.poolID, receiver)
		if err != nil {
			return err
		}
		if held, err = held.Add(shares); err != nil {
			return err
		}

		if err := r.Assets.Transfer(ctx, caller, p.Custody, in.Amount); err != nil {
			return err
		}
		if err := r.Pools.SavePool(ctx, next); err != nil {
			return err
		}
		if err := r.Pools.SetShares(ctx, u.poolID, receiver, held); err != nil {
			return err
		}
		minted = shares
		return r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindDeposit,
			Actor:        caller,
			Counterparty: receiver,
			Amount:       in.Amount,
			Shares:       shares,
		})
	})
	if err != nil {
		return money.Zero(), err
	}
	u.log.WithFields(logrus.Fields{"caller": caller, "receiver": receiver, "amount": in.Amount, "shares": minted}).Info("deposit")
	return minted, nil
}

// Withdraw burns the owner's shares worth amount, rounded up, and pays amount
// out to receiver.
func (u *Usecase) Withdraw(ctx context.Context, in WithdrawInput) (money.Amount, error) {
	if in.Amount.IsZero() {
		return money.Zero(), vault.ErrInvalidAmount
	}
	caller, err := address.Normalize(in.Caller)
	if err != nil {
		return money.Zero(), err
	}
	receiver, err := address.Normalize(in.Receiver)
	if err != nil {
		return money.Zero(), err
	}
	owner, err := address.Normalize(in.Owner)
	if err != nil {
		return money.Zero(), err
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return money.Zero(), err
	}
	defer release()

	var burned money.Amount
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPoolForUpdate(ctx, u.poolID)
		if err != nil {
			return err
		}
		avail, err := p.AvailableLiquidity()
		if err != nil {
			return err
		}
		if in.Amount.Gt(avail) {
			return vault.ErrInsufficientLiquidity
		}
		if caller != owner {
			return vault.ErrUnauthorized
		}
		if receiver == p.Custody {
			return vault.ErrCustodyAccount
		}

		shares, err := p.SharesToBurn(in.Amount)
		if err != nil {
			return err
		}
		held, err := r.Pools.GetShares(ctx, u.poolID, owner)
		if err != nil {
			return err
		}
		if held.Lt(shares) {
			return vault.ErrInsufficientShares
		}

		next := p.Clone()
		if next.TotalAssets, err = p.TotalAssets.Sub(in.Amount); err != nil {
			return err
		}
		if next.TotalShares, err = p.TotalShares.Sub(shares); err != nil {
			return fmt.Errorf("%w: total shares below holder balance", vault.ErrInvariant)
		}
		if held, err = held.Sub(shares); err != nil {
			return err
		}

		if err := r.Pools.SavePool(ctx, next); err != nil {
			return err
		}
		if err := r.Pools.SetShares(ctx, u.poolID, owner, held); err != nil {
			return err
		}
		if err := r.Assets.Transfer(ctx, p.Custody, receiver, in.Amount); err != nil {
			return err
		}
		burned = shares
		return r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindWithdraw,
			Actor:        owner,
			Counterparty: receiver,
			Amount:       in.Amount,
			Shares:       shares,
		})
	})
	if err != nil {
		return money.Zero(), err
	}
	u.log.WithFields(logrus.Fields{"owner": owner, "receiver": receiver, "amount": in.Amount, "shares": burned}).Info("withdraw")
	return burned, nil
}

// BindLoanManager sets the only identity allowed to fund loans and book
// repayments. It succeeds once per pool.
func (u *Usecase) BindLoanManager(ctx context.Context, caller, manager string) error {
	manager, err := address.Normalize(manager)
	if err != nil {
		return err
	}
	if !address.Equal(caller, u.owner) {
		return vault.ErrUnauthorized
	}

	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPoolForUpdate(ctx, u.poolID)
		if err != nil {
			return err
		}
		if p.LoanManager != nil {
			return vault.ErrLoanManagerBound
		}
		next := p.Clone()
		next.LoanManager = &manager
		if err := r.Pools.SavePool(ctx, next); err != nil {
			return err
		}
		return r.Journal.Append(ctx, &journal.Entry{
			PoolID:       u.poolID,
			Kind:         journal.KindLoanManagerBound,
			Actor:        u.owner,
			Counterparty: manager,
		})
	})
	if err != nil {
		return err
	}
	u.log.WithField("loan_manager", manager).Info("loan manager bound")
	return nil
}

func (u *Usecase) authorize(p *vault.Pool, caller string) error {
	if p.LoanManager == nil {
		return vault.ErrLoanManagerUnset
	}
	if !address.Equal(caller, *p.LoanManager) {
		return vault.ErrUnauthorized
	}
	return nil
}

// FundLoan moves amount of free liquidity to borrower. It runs inside the
// loan manager's transaction r.
func (u *Usecase) FundLoan(ctx context.Context, r uow.Repos, caller string, loanID uint64, borrower string, amount money.Amount) error {
	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p, err := r.Pools.GetPoolForUpdate(ctx, u.poolID)
	if err != nil {
		return err
	}
	if err := u.authorize(p, caller); err != nil {
		return err
	}
	if amount.IsZero() {
		return vault.ErrInvalidAmount
	}
	if borrower == p.Custody {
		return vault.ErrCustodyAccount
	}
	avail, err := p.AvailableLiquidity()
	if err != nil {
		return err
	}
	if amount.Gt(avail) {
		return vault.ErrInsufficientLiquidity
	}

	next := p.Clone()
	if next.OutstandingLoans, err = p.OutstandingLoans.Add(amount); err != nil {
		return err
	}
	if err := r.Pools.SavePool(ctx, next); err != nil {
		return err
	}
	if err := r.Assets.Transfer(ctx, p.Custody, borrower, amount); err != nil {
		return err
	}
	if err := r.Journal.Append(ctx, &journal.Entry{
		PoolID:       u.poolID,
		Kind:         journal.KindLoanFunded,
		LoanID:       loanID,
		Actor:        *p.LoanManager,
		Counterparty: borrower,
		Amount:       amount,
	}); err != nil {
		return err
	}
	u.log.WithFields(logrus.Fields{"loan_id": loanID, "borrower": borrower, "amount": amount}).Info("loan funded")
	return nil
}

// ReceiveRepayment books a repayment whose funds are already in custody.
// Principal returns to liquidity, interest grows TotalAssets.
func (u *Usecase) ReceiveRepayment(ctx context.Context, r uow.Repos, caller string, loanID uint64, principal, interest money.Amount) error {
	ctx, release, err := u.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p, err := r.Pools.GetPoolForUpdate(ctx, u.poolID)
	if err != nil {
		return err
	}
	if err := u.authorize(p, caller); err != nil {
		return err
	}

	next := p.Clone()
	if next.OutstandingLoans, err = p.OutstandingLoans.Sub(principal); err != nil {
		return fmt.Errorf("%w: repayment exceeds outstanding loans", vault.ErrInvariant)
	}
	if next.TotalAssets, err = p.TotalAssets.Add(interest); err != nil {
		return err
	}
	if err := r.Pools.SavePool(ctx, next); err != nil {
		return err
	}
	total, err := principal.Add(interest)
	if err != nil {
		return err
	}
	return r.Journal.Append(ctx, &journal.Entry{
		PoolID:    u.poolID,
		Kind:      journal.KindRepaymentReceived,
		LoanID:    loanID,
		Actor:     *p.LoanManager,
		Amount:    total,
		Principal: principal,
		Interest:  interest,
	})
}

// PoolState reads the pool within r.
func (u *Usecase) PoolState(ctx context.Context, r uow.Repos) (*vault.Pool, error) {
	return r.Pools.GetPool(ctx, u.poolID)
}

func (u *Usecase) Pool(ctx context.Context) (*PoolDTO, error) {
	var dto *PoolDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPool(ctx, u.poolID)
		if err != nil {
			return err
		}
		dto, err = toPoolDTO(p)
		return err
	})
	return dto, err
}

func toPoolDTO(p *vault.Pool) (*PoolDTO, error) {
	avail, err := p.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	util, err := p.UtilizationBps()
	if err != nil {
		return nil, err
	}
	price, err := p.SharePrice()
	if err != nil {
		return nil, err
	}
	dto := &PoolDTO{
		PoolID:             p.ID,
		Asset:              p.Asset,
		Custody:            p.Custody,
		TotalAssets:        p.TotalAssets,
		TotalShares:        p.TotalShares,
		OutstandingLoans:   p.OutstandingLoans,
		AvailableLiquidity: avail,
		UtilizationBps:     util,
		SharePrice:         price,
	}
	if p.LoanManager != nil {
		dto.LoanManager = *p.LoanManager
	}
	return dto, nil
}

func (u *Usecase) ConvertToShares(ctx context.Context, assets money.Amount) (money.Amount, error) {
	p, err := u.readPool(ctx)
	if err != nil {
		return money.Zero(), err
	}
	return p.ConvertToShares(assets)
}

func (u *Usecase) ConvertToAssets(ctx context.Context, shares money.Amount) (money.Amount, error) {
	p, err := u.readPool(ctx)
	if err != nil {
		return money.Zero(), err
	}
	return p.ConvertToAssets(shares)
}

func (u *Usecase) readPool(ctx context.Context) (*vault.Pool, error) {
	var p *vault.Pool
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		p, err = r.Pools.GetPool(ctx, u.poolID)
		return err
	})
	return p, err
}

// BalanceOf returns holder's shares and their current asset value.
func (u *Usecase) BalanceOf(ctx context.Context, holder string) (*PositionDTO, error) {
	holder, err := address.Normalize(holder)
	if err != nil {
		return nil, err
	}
	var dto *PositionDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		p, err := r.Pools.GetPool(ctx, u.poolID)
		if err != nil {
			return err
		}
		shares, err := r.Pools.GetShares(ctx, u.poolID, holder)
		if err != nil {
			return err
		}
		assets, err := p.ConvertToAssets(shares)
		if err != nil {
			return err
		}
		dto = &PositionDTO{Holder: holder, Shares: shares, Assets: assets}
		return nil
	})
	return dto, err
}

// Events lists the newest journal entries for the pool.
func (u *Usecase) Events(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []journal.Entry
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		out, err = r.Journal.Recent(ctx, u.poolID, limit)
		return err
	})
	return out, err
}
