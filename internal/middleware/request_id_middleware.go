// internal/middleware/request_id_middleware.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"myo-recorder/internal/utils"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags each request with the caller's X-Request-ID or
// a new UUID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(utils.RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}
