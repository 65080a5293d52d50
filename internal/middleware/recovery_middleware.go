// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myo-recorder/internal/utils"
)

// RecoveryMiddleware turns handler panics into 500 responses
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	serviceLogger := utils.NewServiceLogger(logger, "http-recovery")

	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		serviceLogger.Error("Status API handler panicked",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(utils.RequestIDKey)),
			zap.String("route", c.FullPath()),
			zap.Stack("stacktrace"),
		)

		if c.Writer.Written() {
			c.Abort()
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
		c.Abort()
	})
}
