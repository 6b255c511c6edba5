package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gabrieltemtsen/clenja/internal/adapter/middleware"
	riskUC "github.com/gabrieltemtsen/clenja/internal/usecase/risk"
)

type RiskHandler struct{ uc *riskUC.Usecase }

func NewRiskHandler(uc *riskUC.Usecase) *RiskHandler { return &RiskHandler{uc: uc} }

func (h *RiskHandler) Rules(c echo.Context) error {
	r, err := h.uc.Rules(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// UpdateRules applies a partial update; range checks happen in the usecase
// so the whole merged rule set is judged at once.
func (h *RiskHandler) UpdateRules(c echo.Context) error {
	var patch riskUC.RulesPatch
	if err := c.Bind(&patch); err != nil {
		return badBody(c)
	}
	r, err := h.uc.UpdateRules(c.Request().Context(), middleware.Caller(c), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
