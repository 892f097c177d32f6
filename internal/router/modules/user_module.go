package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avetra/identity/internal/container"
	"github.com/avetra/identity/internal/domain/repository"
	handlers "github.com/avetra/identity/internal/interface/http"
	"github.com/avetra/identity/internal/interface/middleware"
)

// UserModule owns the self-service account endpoints under /api/users/me.
type UserModule struct {
	Handler  *handlers.UserHandler
	Sessions repository.SessionRepository
}

func NewUserModule(h *handlers.UserHandler, sessions repository.SessionRepository) *UserModule {
	return &UserModule{Handler: h, Sessions: sessions}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	auth := rg.Group("/users/me")
	auth.Use(middleware.Auth(container.GetSessionCache(), m.Sessions, container.GetJWT()))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("", m.Handler.GetProfile)
		auth.PUT("", m.Handler.UpdateProfile)
		auth.POST("/avatar", m.Handler.UploadAvatar)
		auth.POST("/convert", m.Handler.ConvertAnonymous)

		auth.POST("/identities", m.Handler.LinkIdentity)
		auth.DELETE("/identities/:id", m.Handler.UnlinkIdentity)

		auth.GET("/sessions", m.Handler.ListSessions)
		auth.DELETE("/sessions/:id", m.Handler.RevokeSession)
		auth.POST("/sessions/revoke-others", m.Handler.RevokeOtherSessions)
	}
}
