package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"goflare.io/loyalty"
	"goflare.io/loyalty/apperr"
)

type WebhookHandler interface {
	HandleStripeWebhook(c echo.Context) error
}

type webhookHandler struct {
	Loyalty loyalty.Loyalty
}

func NewWebhookHandler(
	Loyalty loyalty.Loyalty,
) WebhookHandler {
	return &webhookHandler{
		Loyalty: Loyalty,
	}
}

// HandleStripeWebhook handles POST /webhook/stripe. Anything but a bad
// signature answers 500 so Stripe retries the delivery.
func (wh *webhookHandler) HandleStripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	err = wh.Loyalty.HandleStripeWebhook(c.Request().Context(), payload, signature)
	if apperr.Is(err, apperr.InvalidInput) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid webhook signature"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to handle webhook"})
	}

	return c.NoContent(http.StatusOK)
}
