package vault

import (
	"errors"
	"time"

	"github.com/gabrieltemtsen/clenja/pkg/money"
)

var (
	ErrPoolNotFound          = errors.New("vault: pool not found")
	ErrInvalidAmount         = errors.New("vault: amount must be positive")
	ErrZeroShares            = errors.New("vault: deposit too small to mint shares")
	ErrInsufficientLiquidity = errors.New("vault: insufficient liquidity")
	ErrInsufficientShares    = errors.New("vault: insufficient shares")
	ErrUnauthorized          = errors.New("vault: caller not authorized")
	ErrCustodyAccount        = errors.New("vault: custody account can not be a counterparty")
	ErrLoanManagerBound      = errors.New("vault: loan manager already bound")
	ErrLoanManagerUnset      = errors.New("vault: loan manager not bound")
	ErrInvariant             = errors.New("vault: ledger invariant violated")
)

// PriceScale is the fixed-point scale used when reporting share price.
var PriceScale = money.MustParse("1000000000000000000")

// Table: pools. One row per deployment.
type Pool struct {
	ID               uint64       `gorm:"column:id;primaryKey"`
	Asset            string       `gorm:"column:asset;size:32;not null"`
	Custody          string       `gorm:"column:custody;size:42;not null"`
	TotalAssets      money.Amount `gorm:"column:total_assets;type:varchar(78);not null"`
	TotalShares      money.Amount `gorm:"column:total_shares;type:varchar(78);not null"`
	OutstandingLoans money.Amount `gorm:"column:outstanding_loans;type:varchar(78);not null"`
	// Write-once; see BindLoanManager.
	LoanManager *string   `gorm:"column:loan_manager;size:42"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Pool) TableName() string { return "pools" }

// Table: share_balances
type ShareBalance struct {
	ID        uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	PoolID    uint64       `gorm:"column:pool_id;not null;uniqueIndex:ux_share_balances_pool_holder"`
	Holder    string       `gorm:"column:holder;size:42;not null;uniqueIndex:ux_share_balances_pool_holder"`
	Shares    money.Amount `gorm:"column:shares;type:varchar(78);not null"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (ShareBalance) TableName() string { return "share_balances" }

// AvailableLiquidity is the part of TotalAssets not out on loan.
func (p *Pool) AvailableLiquidity() (money.Amount, error) {
	avail, err := p.TotalAssets.Sub(p.OutstandingLoans)
	if err != nil {
		return money.Zero(), ErrInvariant
	}
	return avail, nil
}

// UtilizationBps is OutstandingLoans/TotalAssets in basis points, 0 on an
// empty pool.
func (p *Pool) UtilizationBps() (money.Amount, error) {
	return money.RatioBps(p.OutstandingLoans, p.TotalAssets)
}

func (p *Pool) empty() bool { return p.TotalShares.IsZero() || p.TotalAssets.IsZero() }

// ConvertToShares prices assets in shares, rounding down. An empty pool
// issues one share per unit.
func (p *Pool) ConvertToShares(assets money.Amount) (money.Amount, error) {
	if p.empty() {
		return assets, nil
	}
	return money.MulDiv(assets, p.TotalShares, p.TotalAssets)
}

// ConvertToAssets prices shares in assets, rounding down. With no shares in
// existence there is nothing to claim.
func (p *Pool) ConvertToAssets(shares money.Amount) (money.Amount, error) {
	if p.TotalShares.IsZero() {
		return money.Zero(), nil
	}
	return money.MulDiv(shares, p.TotalAssets, p.TotalShares)
}

// SharesToBurn is the share cost of withdrawing assets, rounded up so the
// withdrawer absorbs the rounding. Assets left in a pool with no shares can
// not be withdrawn by anyone.
func (p *Pool) SharesToBurn(assets money.Amount) (money.Amount, error) {
	if p.TotalAssets.IsZero() {
		return money.Zero(), ErrInsufficientLiquidity
	}
	if p.TotalShares.IsZero() {
		return money.Zero(), ErrInsufficientShares
	}
	shares, err := money.MulDivCeil(assets, p.TotalShares, p.TotalAssets)
	if err != nil {
		return money.Zero(), err
	}
	if shares.IsZero() {
		return money.Zero(), ErrInsufficientShares
	}
	return shares, nil
}

// SharePrice is assets per share scaled by PriceScale; 1.0 on an empty pool.
func (p *Pool) SharePrice() (money.Amount, error) {
	if p.empty() {
		return PriceScale, nil
	}
	return money.MulDiv(PriceScale, p.TotalAssets, p.TotalShares)
}

// Clone returns a detached copy for compute-then-commit updates.
func (p *Pool) Clone() *Pool {
	c := *p
	if p.LoanManager != nil {
		m := *p.LoanManager
		c.LoanManager = &m
	}
	return &c
}
