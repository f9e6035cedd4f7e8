package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/MedRx-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/MedRx-Intelligence/pkg/errors"
	"github.com/turtacn/MedRx-Intelligence/pkg/types/common"
)

// UserIDHeader is the header the authenticating gateway forwards the caller
// identity in.  Authentication itself happens upstream; this middleware only
// scopes the request to the identity it is handed.
const UserIDHeader = "X-User-ID"

// userScopeKey is the gin context key the user ID is stored under.
const userScopeKey = "user_id"

type userScopeContextKey struct{}

// userIDPattern bounds accepted identities: leading alphanumeric, then up to
// 63 characters of the alphabet identity providers emit in subjects.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_@.\-]{0,63}$`)

// UserValidator decides whether a syntactically valid user ID may proceed.
// Returning an error rejects the request with that error's own HTTP mapping.
type UserValidator func(ctx context.Context, id common.UserID) error

// UserScopeConfig controls user scoping.
type UserScopeConfig struct {
	// HeaderName overrides the header the identity is read from.
	HeaderName string

	// QueryParam, when non-empty, names a query parameter consulted if the
	// header is absent.  Meant for browser tools and signed URLs; leave
	// empty in production.
	QueryParam string

	// Required rejects unidentified requests with 401.  When false,
	// requests without an identity pass through unscoped and handlers
	// answer their own authorization question.
	Required bool

	// Validator, when set, is consulted after the format check.
	Validator UserValidator
}

// DefaultUserScopeConfig returns the production configuration: identity from
// the X-User-ID header only, required.
func DefaultUserScopeConfig() UserScopeConfig {
	return UserScopeConfig{
		HeaderName: UserIDHeader,
		Required:   true,
	}
}

// UserScope returns middleware that extracts the caller identity, validates
// it and stores it on both the gin context and the request context.  The
// identity is echoed on the response so clients can confirm which scope
// served them.
func UserScope(config UserScopeConfig, logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("http")

	headerName := config.HeaderName
	if headerName == "" {
		headerName = UserIDHeader
	}

	return func(c *gin.Context) {
		raw := c.GetHeader(headerName)
		if raw == "" && config.QueryParam != "" {
			raw = c.Query(config.QueryParam)
		}

		if raw == "" {
			if config.Required {
				abortWithError(c, http.StatusUnauthorized,
					pkgerrors.ErrCodeUnauthorized, "user identity is required")
				return
			}
			c.Next()
			return
		}

		if !userIDPattern.MatchString(raw) {
			logger.Warn("Rejected malformed user identity",
				logging.Int("length", len(raw)),
				logging.String("request_id", RequestIDFromGin(c)),
			)
			abortWithError(c, http.StatusBadRequest,
				pkgerrors.ErrCodeValidation, "invalid user identity format")
			return
		}

		id := common.UserID(raw)
		if config.Validator != nil {
			if err := config.Validator(c.Request.Context(), id); err != nil {
				status := pkgerrors.HTTPStatusForCode(pkgerrors.GetCode(err))
				abortWithError(c, status, pkgerrors.GetCode(err), err.Error())
				return
			}
		}

		c.Set(userScopeKey, id)
		ctx := context.WithValue(c.Request.Context(), userScopeContextKey{}, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerName, raw)

		c.Next()
	}
}

// UserIDFromGin returns the identity stored by the UserScope middleware.
func UserIDFromGin(c *gin.Context) (common.UserID, bool) {
	v, ok := c.Get(userScopeKey)
	if !ok {
		return "", false
	}
	id, ok := v.(common.UserID)
	return id, ok
}

// UserIDFromContext returns the identity carried by a request context, for
// code below the HTTP layer.
func UserIDFromContext(ctx context.Context) (common.UserID, bool) {
	id, ok := ctx.Value(userScopeContextKey{}).(common.UserID)
	return id, ok
}
