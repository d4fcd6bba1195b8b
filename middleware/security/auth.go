package security

import (
	"strings"

	"Tribe/tools/errs"
	jwtlib "Tribe/tools/security"

	"github.com/gin-gonic/gin"
)

// CtxUserIDKey is where the middleware stores the authenticated user id.
const CtxUserIDKey = "authUserId"

// Middleware resolves "Authorization: Bearer <token>" into a user id.
// Requests without a valid token are rejected before any handler runs.
func Middleware(opts jwtlib.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			abort(c, errs.ErrUnauthorized.WithDetail("missing bearer token"))
			return
		}
		userID, err := jwtlib.Verify(opts, token)
		if err != nil {
			abort(c, errs.AsCodeError(err))
			return
		}
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	v, _ := c.Get(CtxUserIDKey)
	s, _ := v.(string)
	return s
}

// BearerToken extracts the credential from "Authorization: Bearer ..."
// or, failing that, from the token query parameter. Other auth schemes
// yield "".
func BearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	// websocket handshakes from browsers cannot set headers
	return strings.TrimSpace(c.Query("token"))
}

func abort(c *gin.Context, ce *errs.CodeError) {
	c.AbortWithStatusJSON(errs.HTTPStatus(ce), ce)
}
