package routes

import (
	"github.com/gin-gonic/gin"

	adminapi "commission-app/internal/api/admin"
	billingapi "commission-app/internal/api/billing"
	cardsapi "commission-app/internal/api/cards"
	draftsapi "commission-app/internal/api/drafts"
	stripewebhooks "commission-app/internal/api/stripewebhook"
	usersapi "commission-app/internal/api/users"
	walletapi "commission-app/internal/api/wallet"
	"commission-app/internal/app/http/middleware"
	"commission-app/internal/domain/users"
)

type Handlers struct {
	Drafts   *draftsapi.Handler
	Payments *billingapi.Handler
	Wallet   *walletapi.Handler
	Users    *usersapi.Handler
	Cards    *cardsapi.Handler
	Admin    *adminapi.Handler
	// Stripe is nil unless the stripe provider is configured.
	Stripe *stripewebhooks.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string) {
	// Webhooks verify signatures over the raw body, so they skip sanitizing.
	r.POST("/webhook/payments", h.Payments.Webhook)
	if h.Stripe != nil {
		r.POST("/webhook/stripe", h.Stripe.StripeWebhook)
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/message-cards", h.Cards.ListMessageCards)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(jwtSecret), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", h.Users.GetCurrentUser)

	auth.POST("/drafts", h.Drafts.Create)
	auth.GET("/drafts", h.Drafts.List)
	auth.GET("/drafts/:id", h.Drafts.Get)
	auth.DELETE("/drafts/:id", h.Drafts.Delete)
	auth.PUT("/drafts/:id/method", h.Drafts.SetMethod)
	auth.PUT("/drafts/:id/step", h.Drafts.SetStep)
	auth.PUT("/drafts/:id/shipping", h.Drafts.SetShipping)
	auth.PUT("/drafts/:id/message-card", h.Drafts.SetMessageCard)
	auth.PUT("/drafts/:id/data", h.Drafts.MergeData)

	auth.POST("/drafts/:id/workflow", h.Drafts.Workflow)
	auth.GET("/drafts/:id/revisions", h.Drafts.Revisions)
	auth.GET("/drafts/:id/history", h.Drafts.History)

	auth.GET("/drafts/:id/commit-status", h.Drafts.CommitStatus)
	auth.POST("/drafts/:id/commit", h.Drafts.Commit)
	auth.POST("/drafts/:id/ai-attempts", h.Drafts.ChargeAIAttempt)

	auth.POST("/payments", h.Payments.Initiate)
	auth.GET("/payments/:id", h.Payments.Get)
	auth.POST("/payments/:id/refund", h.Payments.Refund)
	auth.POST("/payments/:id/retry", h.Payments.Retry)
	auth.GET("/orders/:id/payments", h.Payments.ListForOrder)

	auth.GET("/wallet", h.Wallet.Get)
	auth.GET("/wallet/stats", h.Wallet.Stats)
	auth.GET("/wallet/transactions", h.Wallet.Transactions)

	// Designers
	designer := auth.Group("/designer")
	designer.Use(middleware.RequireRole(users.RoleDesigner))
	designer.GET("/drafts", h.Drafts.ListAssigned)
	designer.POST("/drafts/:id/claim", h.Drafts.Claim)
	designer.POST("/drafts/:id/release", h.Drafts.Release)
	designer.GET("/workload", h.Drafts.MyWorkload)

	// Admin routes
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(users.RoleAdmin))
	admin.POST("/drafts/:id/assign", h.Admin.Assign)
	admin.POST("/drafts/:id/unassign", h.Admin.Unassign)
	admin.POST("/drafts/:id/reassign", h.Admin.Reassign)
	admin.POST("/drafts/:id/ai-refund", h.Admin.RefundAIAttempt)
	admin.POST("/users/:id/credits", h.Admin.GrantCredits)
	admin.GET("/designers/:id/workload", h.Admin.DesignerWorkload)
	admin.POST("/message-cards", h.Admin.CreateMessageCard)
}
