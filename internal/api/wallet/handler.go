package walletapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/services/wallet"
)

type Handler struct {
	wallet *wallet.Service
}

func NewHandler(w *wallet.Service) *Handler {
	return &Handler{wallet: w}
}

func (h *Handler) Get(c *gin.Context) {
	w, err := h.wallet.GetOrCreateWallet(c.Request.Context(), middleware.Principal(c).UserID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.wallet.Stats(c.Request.Context(), middleware.Principal(c).UserID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Transactions pages through the ledger, newest first.
func (h *Handler) Transactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		httperr.InvalidInput(c)
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		httperr.InvalidInput(c)
		return
	}
	list, err := h.wallet.History(c.Request.Context(), middleware.Principal(c).UserID, limit, offset)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "limit": limit, "offset": offset})
}
