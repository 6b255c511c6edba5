package vault

import (
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type DepositInput struct {
	Caller   string
	Amount   money.Amount
	Receiver string
}

type WithdrawInput struct {
	Caller   string
	Amount   money.Amount
	Receiver string
	Owner    string
}

type PoolDTO struct {
	PoolID             uint64       `json:"pool_id"`
	Asset              string       `json:"asset"`
	Custody            string       `json:"custody"`
	TotalAssets        money.Amount `json:"total_assets"`
	TotalShares        money.Amount `json:"total_shares"`
	OutstandingLoans   money.Amount `json:"outstanding_loans"`
	AvailableLiquidity money.Amount `json:"available_liquidity"`
	UtilizationBps     money.Amount `json:"utilization_bps"`
	// Assets per share, scaled by 1e18
	SharePrice  money.Amount `json:"share_price"`
	LoanManager string       `json:"loan_manager,omitempty"`
}

type PositionDTO struct {
	Holder string       `json:"holder"`
	Shares money.Amount `json:"shares"`
	Assets money.Amount `json:"assets"`
}
