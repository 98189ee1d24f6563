package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/services/drafting"
	"commission-app/internal/services/wallet"
	"commission-app/internal/store"
)

type Handler struct {
	assigner *drafting.Assigner
	drafts   *drafting.Service
	wallet   *wallet.Service
	cards    store.CardRepository
}

func NewHandler(a *drafting.Assigner, d *drafting.Service, w *wallet.Service, cards store.CardRepository) *Handler {
	return &Handler{assigner: a, drafts: d, wallet: w, cards: cards}
}

type designerRequest struct {
	DesignerID uint `json:"designer_id" binding:"required"`
}

func (h *Handler) Assign(c *gin.Context) {
	var req designerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	respondDraft(c)(h.assigner.Assign(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.DesignerID))
}

func (h *Handler) Reassign(c *gin.Context) {
	var req designerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	respondDraft(c)(h.assigner.Reassign(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.DesignerID))
}

type unassignRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Unassign(c *gin.Context) {
	var req unassignRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.InvalidInput(c)
			return
		}
	}
	respondDraft(c)(h.assigner.Unassign(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Reason))
}

func (h *Handler) DesignerWorkload(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	w, err := h.assigner.Workload(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

type grantRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Note   string `json:"note"`
}

func (h *Handler) GrantCredits(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	w, err := h.wallet.Grant(c.Request.Context(), middleware.Principal(c), id, req.Amount, req.Note)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

type aiRefundRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// RefundAIAttempt returns credits to the draft owner after a failed
// generation.
func (h *Handler) RefundAIAttempt(c *gin.Context) {
	var req aiRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	d, err := h.drafts.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	w, err := h.wallet.RefundAIGeneration(c.Request.Context(), d.UserID, d.ID, req.Amount)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": req.Amount, "balance": w.Balance})
}

type cardRequest struct {
	Name       string `json:"name" binding:"required"`
	PriceCents int64  `json:"price_cents" binding:"required,gt=0"`
	Currency   string `json:"currency" binding:"omitempty,len=3"`
}

func (h *Handler) CreateMessageCard(c *gin.Context) {
	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	if req.Currency == "" {
		req.Currency = "TRY"
	}
	card := &cards.MessageCard{
		ID:         uuid.NewString(),
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		Active:     true,
	}
	if err := h.cards.Create(c.Request.Context(), card); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Message card already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create message card"})
		return
	}
	c.JSON(http.StatusCreated, card)
}

func respondDraft(c *gin.Context) func(*drafts.Draft, error) {
	return func(d *drafts.Draft, err error) {
		if err != nil {
			httperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}
