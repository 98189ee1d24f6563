package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commission-app/internal/api/httperr"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/services/drafting"
	"commission-app/internal/services/wallet"
	"commission-app/internal/store"
)

type Handler struct {
	users    store.UserRepository
	wallet   *wallet.Service
	assigner *drafting.Assigner
}

func NewHandler(users store.UserRepository, w *wallet.Service, a *drafting.Assigner) *Handler {
	return &Handler{users: users, wallet: w, assigner: a}
}

// GetCurrentUser returns the profile, credit balance and, for designers, the
// current workload. The first call creates the wallet with its welcome bonus.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	p := middleware.Principal(c)
	if p.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.users.Get(c.Request.Context(), p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	w, err := h.wallet.GetOrCreateWallet(c.Request.Context(), p.UserID)
	if err != nil {
		httperr.Respond(c, err)
		return
	}

	resp := MeResponse{
		User:   BuildUserDTO(user),
		Wallet: BuildWalletDTO(w),
	}
	if p.IsDesigner() {
		load, err := h.assigner.Workload(c.Request.Context(), p, p.UserID)
		if err != nil {
			httperr.Respond(c, err)
			return
		}
		resp.Workload = BuildWorkloadDTO(load)
	}

	c.JSON(http.StatusOK, resp)
}
