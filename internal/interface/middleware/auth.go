package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/infrastructure/rediscache"
	"github.com/avetra/identity/pkg/helpers"
	"github.com/avetra/identity/pkg/response"
)

// Context keys set by Auth on success.
const (
	CtxUserID    = "userID"
	CtxSessionID = "sessionID"
)

// Auth validates the access token and checks that the session it names is
// still live. The Redis cache answers first; a miss falls through to the
// sessions table and refills the cache.
func Auth(cache *rediscache.SessionCache, sessions repository.SessionRepository, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerOrCookie(c)
		if token == "" {
			abortUnauthorized(c, "missing access token")
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid access token")
			return
		}
		sessionID, err := uuid.Parse(claims.SessionID)
		if err != nil {
			abortUnauthorized(c, "invalid access token")
			return
		}

		userID, found, err := cache.Lookup(c.Request.Context(), sessionID)
		if err == nil && found {
			if userID != claims.UserID() {
				abortUnauthorized(c, "session not found")
				return
			}
			c.Set(CtxUserID, claims.UserID())
			c.Set(CtxSessionID, claims.SessionID)
			c.Next()
			return
		}

		rec, err := sessions.FindByID(c.Request.Context(), sessionID)
		if err != nil || rec.UserID.String() != claims.UserID() || !rec.ExpiresAt.After(time.Now()) {
			abortUnauthorized(c, "session not found")
			return
		}
		_ = cache.Put(c.Request.Context(), rec)

		c.Set(CtxUserID, claims.UserID())
		c.Set(CtxSessionID, claims.SessionID)
		c.Next()
	}
}

func bearerOrCookie(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	token, err := c.Cookie("access_token")
	if err != nil {
		return ""
	}
	return token
}

func abortUnauthorized(c *gin.Context, msg string) {
	resp := response.Error[any](c, http.StatusUnauthorized, msg, nil)
	c.AbortWithStatusJSON(resp.Status, resp)
}
