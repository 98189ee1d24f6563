package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"commission-app/internal/api/httperr"
	"commission-app/internal/services/payments"
)

const maxWebhookBody = 65536

type WebhookConfig struct {
	Secret string
	// AllowUnsigned skips signature checks. Only set for the mock provider
	// outside production.
	AllowUnsigned bool
}

// callbackRequest is the signed payment notification. Amount is in minor units.
type callbackRequest struct {
	OrderID           string         `json:"orderId" validate:"required"`
	PaymentID         string         `json:"paymentId" validate:"required"`
	ProviderPaymentID string         `json:"providerPaymentId"`
	Status            string         `json:"status" validate:"required,oneof=success failed cancelled"`
	TransactionID     string         `json:"transactionId"`
	ErrorMessage      string         `json:"errorMessage"`
	Amount            *int64         `json:"amount" validate:"omitempty,gte=0"`
	Currency          string         `json:"currency" validate:"omitempty,len=3"`
	Data              map[string]any `json:"data"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Webhook verifies the signature over the raw body before parsing it.
func (h *Handler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
		return
	}

	if !h.webhook.AllowUnsigned {
		if err := payments.VerifySignature(body, c.GetHeader(payments.SignatureHeader), h.webhook.Secret); err != nil {
			slog.Warn("payment webhook signature rejected", "remote", c.ClientIP())
			httperr.Respond(c, err)
			return
		}
	}

	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callback payload", "details": err.Error()})
		return
	}

	out, err := h.payments.HandleCallback(c.Request.Context(), payments.CallbackInput{
		OrderID:           req.OrderID,
		PaymentID:         req.PaymentID,
		ProviderPaymentID: req.ProviderPaymentID,
		Status:            req.Status,
		TransactionID:     req.TransactionID,
		ErrorMessage:      req.ErrorMessage,
		AmountCents:       req.Amount,
		Currency:          req.Currency,
		Data:              req.Data,
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
