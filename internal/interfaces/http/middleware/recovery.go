package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
)

// errorBody is the JSON error envelope emitted by middleware.  It matches the
// envelope the handlers package produces so clients see one error shape
// regardless of which layer rejected the request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code pkgerrors.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, errorBody{
		Error: errorDetail{Code: string(code), Message: message},
	})
}

// Recovery returns middleware that converts handler panics into 500 responses.
// The panic value and stack are logged; the client sees only the generic
// envelope, never the panic text.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("http")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Handler panic recovered",
					logging.Any("panic", rec),
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.String("request_id", RequestIDFromGin(c)),
					logging.String("stack", string(debug.Stack())),
				)
				abortWithError(c, http.StatusInternalServerError,
					pkgerrors.ErrCodeInternal, "internal server error")
			}
		}()
		c.Next()
	}
}
