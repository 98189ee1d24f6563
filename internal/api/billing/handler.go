package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/gateway"
	"commission-app/internal/services/payments"
)

type Handler struct {
	payments *payments.Service
	webhook  WebhookConfig
}

func NewHandler(svc *payments.Service, webhook WebhookConfig) *Handler {
	return &Handler{payments: svc, webhook: webhook}
}

type cardRequest struct {
	HolderName  string `json:"holder_name" binding:"required"`
	Number      string `json:"number" binding:"required"`
	ExpireMonth string `json:"expire_month" binding:"required"`
	ExpireYear  string `json:"expire_year" binding:"required"`
	CVC         string `json:"cvc" binding:"required"`
}

type initiateRequest struct {
	OrderID  string         `json:"order_id" binding:"required"`
	Provider string         `json:"provider"`
	Method   string         `json:"method"`
	Card     *cardRequest   `json:"card"`
	Billing  map[string]any `json:"billing"`
}

func (h *Handler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	in := payments.InitiateInput{
		OrderID:  req.OrderID,
		Provider: req.Provider,
		Method:   req.Method,
		Billing:  req.Billing,
	}
	if req.Card != nil {
		in.Card = &gateway.Card{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpireMonth: req.Card.ExpireMonth,
			ExpireYear:  req.Card.ExpireYear,
			CVC:         req.Card.CVC,
		}
	}
	out, err := h.payments.Initiate(c.Request.Context(), middleware.Principal(c), in)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.payments.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListForOrder(c *gin.Context) {
	list, err := h.payments.ListForOrder(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

type refundRequest struct {
	Amount *int64 `json:"amount" binding:"omitempty,gt=0"`
	Reason string `json:"reason"`
}

func (h *Handler) Refund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.InvalidInput(c)
			return
		}
	}
	out, err := h.payments.Refund(c.Request.Context(), middleware.Principal(c), payments.RefundInput{
		PaymentID:   c.Param("id"),
		AmountCents: req.Amount,
		Reason:      req.Reason,
	})
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Retry(c *gin.Context) {
	out, err := h.payments.Retry(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
