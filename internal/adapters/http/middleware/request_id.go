// Package middleware holds cross-cutting Gin handlers for the core's
// small operator-facing HTTP surface (health, metrics, saga lookup):
// request correlation, structured access logging, panic recovery.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header carrying the request ID, inbound or outbound.
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the Gin context key the request ID is stored under.
	RequestIDContextKey = "request_id"
)

// RequestID assigns a request ID to every inbound request, reusing the
// caller's X-Request-ID header when present so a request can be traced
// across services, and generating a UUID otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDContextKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetRequestID reads the request ID RequestID stored on the Gin context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDContextKey); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}
	return ""
}
