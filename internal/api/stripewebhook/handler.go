package stripewebhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"commission-app/internal/services/payments"
)

type CallbackHandler interface {
	HandleCallback(ctx context.Context, in payments.CallbackInput) (payments.CallbackOutput, error)
}

type Handler struct {
	payments       CallbackHandler
	endpointSecret string
}

func NewHandler(svc CallbackHandler, endpointSecret string) *Handler {
	return &Handler{payments: svc, endpointSecret: endpointSecret}
}

// StripeWebhook settles payments from payment_intent events. Every other
// event type is acknowledged and ignored.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.endpointSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}

	payload, err := readStripeBody(c, 65536)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		slog.Warn("stripe signature verification failed", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	status, ok := intentOutcomes[event.Type]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse payment intent"})
		return
	}

	out, err := h.handlePaymentIntent(c.Request.Context(), &intent, status)
	if err != nil {
		if retryable(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
			return
		}
		// Stripe retries non-2xx answers; a bad event will never succeed.
		slog.Warn("stripe event ignored", "event_id", event.ID, "type", event.Type, "intent_id", intent.ID, "err", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received", "payment_status": out.Status, "processed": out.Processed})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
