// Package handlers implements the HTTP handlers of the public API.  Handlers
// bind and validate transport concerns, delegate to application services and
// translate AppError codes into HTTP responses; no domain logic lives here.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/interfaces/http/middleware"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// ErrorResponse is the JSON error envelope every failed request returns.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and the human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError translates err into the envelope.  The status comes from the
// AppError code's HTTP mapping; messages of server-side failures are masked
// so internals never reach the client.  The error is also attached to the
// gin context for the logging and metrics middleware.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	code := pkgerrors.GetCode(err)
	status := pkgerrors.HTTPStatusForCode(code)

	message := pkgerrors.DefaultMessageForCode(code)
	if status < http.StatusInternalServerError {
		var ae *pkgerrors.AppError
		if errors.As(err, &ae) {
			message = ae.Message
		}
	}

	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{Code: string(code), Message: message},
	})
}

// respondValidation rejects a request that failed transport-level binding.
func respondValidation(c *gin.Context, message string) {
	respondError(c, pkgerrors.New(pkgerrors.ErrCodeValidation, message))
}

// scopedUser returns the identity established by the user-scope middleware.
// Routes are registered behind it, so absence means a wiring bug; the caller
// gets a 401 rather than a panic.
func scopedUser(c *gin.Context) (common.UserID, bool) {
	id, ok := middleware.UserIDFromGin(c)
	if !ok {
		respondError(c, pkgerrors.New(pkgerrors.ErrCodeUnauthorized, "user identity is required"))
		return "", false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, falling back to def
// for absent or malformed values.  Range clamping is the service's concern.
func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
