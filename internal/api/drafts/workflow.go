package draftsapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/services/checkout"
	"commission-app/internal/services/drafting"
)

// Workflow is the action interface: {action, notes?, reason?}.
func (h *Handler) Workflow(c *gin.Context) {
	var req drafting.ActionInput
	if err := c.ShouldBindJSON(&req); err != nil || req.Action == "" {
		httperr.InvalidInput(c)
		return
	}
	res, err := h.workflow.Dispatch(c.Request.Context(), middleware.Principal(c), c.Param("id"), req)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Revisions(c *gin.Context) {
	out, err := h.workflow.RevisionDetails(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) History(c *gin.Context) {
	events, err := h.workflow.History(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) CommitStatus(c *gin.Context) {
	out, err := h.checkout.Status(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Commit(c *gin.Context) {
	var req checkout.CommitInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.InvalidInput(c)
			return
		}
	}
	res, err := h.checkout.Commit(c.Request.Context(), middleware.Principal(c), c.Param("id"), req)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type attemptRequest struct {
	Attempt int `json:"attempt" binding:"required,min=1"`
}

// ChargeAIAttempt spends credits for one AI generation on the caller's draft.
func (h *Handler) ChargeAIAttempt(c *gin.Context) {
	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.InvalidInput(c)
		return
	}
	p := middleware.Principal(c)
	d, err := h.drafts.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	if !d.IsOwnedBy(p.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	res, err := h.wallet.ChargeForAIGeneration(c.Request.Context(), p.UserID, d.ID, req.Attempt)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Designer routes.

func (h *Handler) ListAssigned(c *gin.Context) {
	list, err := h.drafts.ListAssigned(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": list})
}

func (h *Handler) Claim(c *gin.Context) {
	p := middleware.Principal(c)
	h.reply(c)(h.assigner.Assign(c.Request.Context(), p, c.Param("id"), p.UserID))
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Release(c *gin.Context) {
	var req releaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.InvalidInput(c)
			return
		}
	}
	h.reply(c)(h.assigner.Unassign(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Reason))
}

func (h *Handler) MyWorkload(c *gin.Context) {
	p := middleware.Principal(c)
	w, err := h.assigner.Workload(c.Request.Context(), p, p.UserID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}
