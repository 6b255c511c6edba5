package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gabrieltemtsen/clenja/internal/adapter/middleware"
	"github.com/gabrieltemtsen/clenja/internal/usecase/approval"
)

type ApprovalHandler struct{ uc *approval.Usecase }

func NewApprovalHandler(uc *approval.Usecase) *ApprovalHandler { return &ApprovalHandler{uc: uc} }

// ApproveLoan disburses a requested loan; operator only.
func (h *ApprovalHandler) ApproveLoan(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return writeError(c, err)
	}
	dto, err := h.uc.ApproveAndDisburse(c.Request().Context(), approval.ApproveInput{
		Caller: middleware.Caller(c),
		LoanID: id,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApprovalHandler) GetApproval(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("approval_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApprovalHandler) LoanApproval(c echo.Context) error {
	id, err := loanID(c)
	if err != nil {
		return writeError(c, err)
	}
	dto, err := h.uc.ForLoan(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApprovalHandler) ListByOperator(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	out, err := h.uc.ListByOperator(c.Request().Context(), c.Param("operator"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
