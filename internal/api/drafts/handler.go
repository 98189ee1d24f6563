package draftsapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/services/checkout"
	"commission-app/internal/services/drafting"
	"commission-app/internal/services/wallet"
)

type Handler struct {
	drafts   *drafting.Service
	workflow *drafting.Workflow
	assigner *drafting.Assigner
	checkout *checkout.Service
	wallet   *wallet.Service
}

func NewHandler(d *drafting.Service, wf *drafting.Workflow, a *drafting.Assigner, co *checkout.Service, w *wallet.Service) *Handler {
	return &Handler{drafts: d, workflow: wf, assigner: a, checkout: co, wallet: w}
}

type createRequest struct {
	Method drafts.Method `json:"method"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.InvalidInput(c)
			return
		}
	}
	d, err := h.drafts.Create(c.Request.Context(), middleware.Principal(c), req.Method)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.drafts.ListMine(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": list})
}

func (h *Handler) Get(c *gin.Context) {
	d, err := h.drafts.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.drafts.Delete(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type methodRequest struct {
	Method drafts.Method `json:"method" binding:"required"`
}

func (h *Handler) SetMethod(c *gin.Context) {
	var req methodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	h.reply(c)(h.drafts.SetMethod(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Method))
}

type stepRequest struct {
	Step int `json:"step" binding:"required"`
}

func (h *Handler) SetStep(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	h.reply(c)(h.drafts.SetStep(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Step))
}

func (h *Handler) SetShipping(c *gin.Context) {
	var req drafts.ShippingSnapshot
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	h.reply(c)(h.drafts.SetShipping(c.Request.Context(), middleware.Principal(c), c.Param("id"), req))
}

type cardRequest struct {
	MessageCardID string `json:"message_card_id" binding:"required"`
}

func (h *Handler) SetMessageCard(c *gin.Context) {
	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	h.reply(c)(h.drafts.SetMessageCard(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.MessageCardID))
}

func (h *Handler) MergeData(c *gin.Context) {
	var req drafts.Data
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	h.reply(c)(h.drafts.MergeData(c.Request.Context(), middleware.Principal(c), c.Param("id"), req))
}

func (h *Handler) reply(c *gin.Context) func(*drafts.Draft, error) {
	return func(d *drafts.Draft, err error) {
		if err != nil {
			httperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}
