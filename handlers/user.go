package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"goflare.io/loyalty"
)

type UserHandler interface {
	ListCoupons(c echo.Context) error
	GetSavings(c echo.Context) error
}

type userHandler struct {
	Loyalty loyalty.Loyalty
}

func NewUserHandler(
	Loyalty loyalty.Loyalty,
) UserHandler {
	return &userHandler{
		Loyalty: Loyalty,
	}
}

// ListCoupons handles GET /users/:id/coupons
func (uh *userHandler) ListCoupons(c echo.Context) error {
	coupons := uh.Loyalty.AggregateCoupons(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, map[string]any{"coupons": coupons})
}

// GetSavings handles GET /users/:id/savings
func (uh *userHandler) GetSavings(c echo.Context) error {
	stats := uh.Loyalty.ComputeSavingsStats(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, stats)
}
