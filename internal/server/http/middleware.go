package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const callerKey = "gophauth.caller"

// RequireAuth admits requests carrying a live session cookie or, failing
// that, a valid bearer token.
func RequireAuth(a AuthAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, _ := c.Cookie(common.SessionCookieName)

		caller, err := a.Authenticate(c.Request.Context(), sessionID, bearerToken(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) *services.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(*services.Caller)
	return caller
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader(common.AuthorizationHeaderName)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequestLogger logs one line per request.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
