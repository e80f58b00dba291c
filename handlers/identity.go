package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"goflare.io/loyalty"
	"goflare.io/loyalty/apperr"
)

type IdentityHandler interface {
	Link(c echo.Context) error
	PhoneChanged(c echo.Context) error
}

type identityHandler struct {
	Loyalty loyalty.Loyalty
}

func NewIdentityHandler(
	Loyalty loyalty.Loyalty,
) IdentityHandler {
	return &identityHandler{
		Loyalty: Loyalty,
	}
}

type linkRequest struct {
	UserID       string `json:"user_id"`
	Phone        string `json:"phone"`
	PhoneChanged bool   `json:"phone_changed"`
}

// Link handles POST /identity/link
func (ih *identityHandler) Link(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	outcome := ih.Loyalty.ResolveAndLink(c.Request().Context(), req.UserID, req.Phone, req.PhoneChanged)

	switch apperr.KindOf(outcome.Err) {
	case apperr.InvalidInput:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": outcome.Message})
	case apperr.SourceUnavailable:
		return c.JSON(http.StatusServiceUnavailable, outcome)
	}

	return c.JSON(http.StatusOK, outcome)
}

// PhoneChanged handles POST /identity/phone-changed
func (ih *identityHandler) PhoneChanged(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	if err := ih.Loyalty.PublishPhoneChanged(c.Request().Context(), req.UserID, req.Phone); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to publish phone change"})
	}

	return c.NoContent(http.StatusAccepted)
}
