package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/pkg/response"
)

// RequireAdmin runs after Auth and rejects callers whose account does not
// carry the admin role.
func RequireAdmin(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := uuid.Parse(c.GetString(CtxUserID))
		if err != nil {
			abortUnauthorized(c, "unauthorized")
			return
		}
		u, err := users.FindByID(c.Request.Context(), uid)
		if err != nil || u.Role() != user.RoleAdmin {
			resp := response.Error[any](c, http.StatusForbidden, "admin access required", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		c.Next()
	}
}
