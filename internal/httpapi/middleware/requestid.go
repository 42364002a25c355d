package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the response header carrying the opaque per-request id.
const RequestIDHeader = "X-Request-Id"

// RequestID stamps every response with an opaque, monotonic+random id
// (UUIDv7: a millisecond timestamp prefix plus random tail) per spec.md
// §4.H, and stores it in the gin context under "request_id". The access-log
// middleware reads it back from the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.NewV7()
		idStr := id.String()
		if err != nil {
			idStr = uuid.NewString()
		}
		c.Set("request_id", idStr)
		c.Writer.Header().Set(RequestIDHeader, idStr)
		c.Next()
	}
}
