// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uart-assist/internal/utils"
)

// RecoveryMiddleware turns a handler panic into a 500 response logged with
// the request id
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := c.GetString(RequestIDKey)

		logger.Error("Monitor handler panicked",
			zap.String("request_id", requestID),
			zap.String("route", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.String("panic", fmt.Sprint(recovered)),
			zap.Stack("stacktrace"),
		)

		var err error
		if requestID != "" {
			err = fmt.Errorf("request %s aborted", requestID)
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", err)
		c.Abort()
	})
}
