package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gabrieltemtsen/clenja/internal/adapter/middleware"
	"github.com/gabrieltemtsen/clenja/internal/usecase/vault"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type VaultHandler struct{ uc *vault.Usecase }

func NewVaultHandler(uc *vault.Usecase) *VaultHandler { return &VaultHandler{uc: uc} }

type depositReq struct {
	Amount string `json:"amount"   validate:"required,amount"`
	// Defaults to the caller
	Receiver string `json:"receiver" validate:"omitempty,address"`
}

type withdrawReq struct {
	Amount   string `json:"amount"   validate:"required,amount"`
	Receiver string `json:"receiver" validate:"omitempty,address"`
	Owner    string `json:"owner"    validate:"omitempty,address"`
}

type bindReq struct {
	LoanManager string `json:"loan_manager" validate:"required,address"`
}

func orCaller(v, caller string) string {
	if v == "" {
		return caller
	}
	return v
}

func (h *VaultHandler) Pool(c echo.Context) error {
	dto, err := h.uc.Pool(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *VaultHandler) Deposit(c echo.Context) error {
	var req depositReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	caller := middleware.Caller(c)
	shares, err := h.uc.Deposit(c.Request().Context(), vault.DepositInput{
		Caller:   caller,
		Amount:   money.MustParse(req.Amount),
		Receiver: orCaller(req.Receiver, caller),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"shares": shares})
}

func (h *VaultHandler) Withdraw(c echo.Context) error {
	var req withdrawReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	caller := middleware.Caller(c)
	burned, err := h.uc.Withdraw(c.Request().Context(), vault.WithdrawInput{
		Caller:   caller,
		Amount:   money.MustParse(req.Amount),
		Receiver: orCaller(req.Receiver, caller),
		Owner:    orCaller(req.Owner, caller),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"shares_burned": burned})
}

func (h *VaultHandler) BindLoanManager(c echo.Context) error {
	var req bindReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return invalid(c, err)
	}
	if err := h.uc.BindLoanManager(c.Request().Context(), middleware.Caller(c), req.LoanManager); err != nil {
		return writeError(c, err)
	}
	return h.Pool(c)
}

func (h *VaultHandler) Balance(c echo.Context) error {
	dto, err := h.uc.BalanceOf(c.Request().Context(), c.Param("holder"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// Convert prices ?assets= in shares or ?shares= in assets.
func (h *VaultHandler) Convert(c echo.Context) error {
	ctx := c.Request().Context()
	if raw := c.QueryParam("assets"); raw != "" {
		a, err := money.Parse(raw)
		if err != nil {
			return writeError(c, err)
		}
		shares, err := h.uc.ConvertToShares(ctx, a)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"assets": a, "shares": shares})
	}
	if raw := c.QueryParam("shares"); raw != "" {
		s, err := money.Parse(raw)
		if err != nil {
			return writeError(c, err)
		}
		assets, err := h.uc.ConvertToAssets(ctx, s)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"assets": assets, "shares": s})
	}
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "assets or shares query param required", Code: "input"})
}

func (h *VaultHandler) Events(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	out, err := h.uc.Events(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
