package cards

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commission-app/internal/store"
)

type Handler struct {
	cards store.CardRepository
}

func NewHandler(cards store.CardRepository) *Handler {
	return &Handler{cards: cards}
}

// ListMessageCards is the public catalog of sellable cards.
func (h *Handler) ListMessageCards(c *gin.Context) {
	list, err := h.cards.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load message cards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_cards": list})
}
