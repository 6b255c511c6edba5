package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/gabrieltemtsen/clenja/internal/domain/approval"
	"github.com/gabrieltemtsen/clenja/internal/domain/asset"
	"github.com/gabrieltemtsen/clenja/internal/domain/loan"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/guard"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

type errClass struct {
	status int
	code   string
	errs   []error
}

var errClasses = []errClass{
	{http.StatusBadRequest, "input", []error{
		address.ErrInvalid, address.ErrZero, money.ErrInvalid,
		vault.ErrInvalidAmount, vault.ErrZeroShares, vault.ErrCustodyAccount,
		loan.ErrInvalidAmount, loan.ErrInvalidFee, risk.ErrInvalidRules,
	}},
	{http.StatusNotFound, "state", []error{
		loan.ErrNotFound, vault.ErrPoolNotFound, approval.ErrNotFound,
		risk.ErrRulesNotFound, loan.ErrSettingsNotFound,
	}},
	{http.StatusConflict, "state", []error{
		loan.ErrNotActive, loan.ErrAlreadyDisbursed, loan.ErrNotDisbursed, loan.ErrNotFullyRepaid,
		vault.ErrLoanManagerBound, vault.ErrLoanManagerUnset, guard.ErrReentrant,
	}},
	{http.StatusConflict, "resource", []error{
		vault.ErrInsufficientLiquidity, vault.ErrInsufficientShares, asset.ErrInsufficientBalance,
	}},
	{http.StatusForbidden, "permission", []error{
		vault.ErrUnauthorized, loan.ErrUnauthorized, risk.ErrUnauthorized,
	}},
	{http.StatusUnprocessableEntity, "arithmetic", []error{
		money.ErrOverflow, money.ErrUnderflow, money.ErrDivByZero,
	}},
}

// writeError maps a usecase error onto a status and payload. Policy
// rejections keep the validator's reason verbatim.
func writeError(c echo.Context, err error) error {
	if reason, ok := risk.ReasonOf(err); ok {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "loan rejected by policy", Code: "policy", Reason: reason})
	}
	for _, class := range errClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return c.JSON(class.status, ErrorResponse{Error: err.Error(), Code: class.code})
			}
		}
	}
	logrus.WithError(err).WithField("path", c.Path()).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: "input"})
}

func invalid(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Code:    "input",
		Details: ToFieldErrors(err),
	})
}
