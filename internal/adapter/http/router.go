package http

import (
	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health   *Handler
	Vault    *VaultHandler
	Loans    *LoanHandler
	Approval *ApprovalHandler
	Risk     *RiskHandler
}

// Register mounts the ledger API. mw runs on every /v1 route, in order.
func Register(e *echo.Echo, h Handlers, mw ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)
	e.GET("/ready", h.Health.Ready)

	v1 := e.Group("/v1", mw...)

	v1.GET("/pool", h.Vault.Pool)
	v1.GET("/pool/convert", h.Vault.Convert)
	v1.GET("/pool/balances/:holder", h.Vault.Balance)
	v1.POST("/pool/deposit", h.Vault.Deposit)
	v1.POST("/pool/withdraw", h.Vault.Withdraw)
	v1.POST("/pool/loan-manager", h.Vault.BindLoanManager)
	v1.GET("/events", h.Vault.Events)

	v1.POST("/loans", h.Loans.RequestLoan)
	v1.GET("/loans/:loan_id", h.Loans.GetLoan)
	v1.POST("/loans/:loan_id/approve", h.Approval.ApproveLoan)
	v1.GET("/loans/:loan_id/approval", h.Approval.LoanApproval)
	v1.POST("/loans/:loan_id/repay", h.Loans.Repay)
	v1.POST("/loans/:loan_id/close", h.Loans.Close)
	v1.GET("/borrowers/:borrower/loans", h.Loans.ListByBorrower)

	v1.GET("/approvals/:approval_id", h.Approval.GetApproval)
	v1.GET("/operators/:operator/approvals", h.Approval.ListByOperator)

	v1.GET("/fees", h.Loans.Fees)
	v1.PUT("/fees", h.Loans.UpdateFees)

	v1.GET("/risk/rules", h.Risk.Rules)
	v1.PATCH("/risk/rules", h.Risk.UpdateRules)
}
