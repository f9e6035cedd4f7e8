// Package middleware provides the gin middleware chain for the HTTP API:
// request identification, structured request logging, panic recovery, CORS,
// per-caller rate limiting, user scoping and metrics collection.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header the request ID is read from and echoed to.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the request ID is stored under.
const requestIDKey = "request_id"

type requestIDContextKey struct{}

// RequestID assigns every request a unique identifier.  An identifier already
// present on the incoming request (a gateway or a retrying client) is kept so
// the ID stays stable across hops; otherwise a new UUID is generated.  The ID
// is stored on the gin context, injected into the request context and echoed
// back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		ctx := context.WithValue(c.Request.Context(), requestIDContextKey{}, id)
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFromGin returns the request ID stored by the RequestID middleware,
// or "" when the middleware did not run.
func RequestIDFromGin(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// RequestIDFromContext returns the request ID carried by a request context,
// for callers below the HTTP layer (services, repositories) that log with
// the raw context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return id
	}
	return ""
}
