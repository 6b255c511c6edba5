package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gabrieltemtsen/clenja/internal/adapter/middleware"
	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type LoanHandler struct{ uc *loanUC.Usecase }

func NewLoanHandler(uc *loanUC.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type requestLoanReq struct {
	Principal string `json:"principal" validate:"required,amount"`
	// Seconds
	Duration uint64    `json:"duration"`
	AprBps   money.Bps `json:"apr_bps"   validate:"bps"`
	Metadata string    `json:"metadata"  validate:"lte=4096"`
}

type repayReq struct {
	Amount string `json:"amount" validate:"required,amount"`
}

type feeReq struct {
	AgentFeeBps money.Bps `json:"agent_fee_bps" validate:"bps"`
	Treasury    string    `json:"treasury"      validate:"required,address"`
}

func loanID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("loan_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, loan.ErrNotFound
	}
	return id, nil
}

func (h *LoanHandler) RequestLoan(c echo.Context) error {
	var req requestLoanReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	dto, err := h.uc.RequestLoan(c.Request().Context(), loanUC.RequestInput{
		Caller:    middleware.Caller(c),
		Principal: money.MustParse(req.Principal),
		Duration:  req.Duration,
		AprBps:    req.AprBps,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return writeError(c, err)
	}
	dto, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListByBorrower(c echo.Context) error {
	out, err := h.uc.ListByBorrower(c.Request().Context(), c.Param("borrower"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Repay(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req repayReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	dto, err := h.uc.Repay(c.Request().Context(), loanUC.RepayInput{
		Caller: middleware.Caller(c),
		LoanID: id,
		Amount: money.MustParse(req.Amount),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Close(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return writeError(c, err)
	}
	dto, err := h.uc.Close(c.Request().Context(), loanUC.CloseInput{Caller: middleware.Caller(c), LoanID: id})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Fees(c echo.Context) error {
	s, err := h.uc.FeeSettings(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *LoanHandler) UpdateFees(c echo.Context) error {
	var req feeReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	s, err := h.uc.UpdateFeeSettings(c.Request().Context(), loanUC.FeeInput{
		Caller:      middleware.Caller(c),
		AgentFeeBps: req.AgentFeeBps,
		Treasury:    req.Treasury,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}
