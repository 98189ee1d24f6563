// Package httperr maps service errors onto JSON responses.
package httperr

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"commission-app/internal/apperr"
)

const genericMessage = "Internal server error"

// Respond aborts the request with the status and message of err. Internal
// errors are logged and answered with a generic message.
func Respond(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)

	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindInternal {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": genericMessage, "code": "INTERNAL"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": e.Message, "code": e.Code})
}

// InvalidInput answers a body or query that failed to bind.
func InvalidInput(c *gin.Context) {
	Respond(c, apperr.BadRequest("Invalid input"))
}
