package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avetra/identity/internal/container"
	"github.com/avetra/identity/internal/domain/repository"
	handlers "github.com/avetra/identity/internal/interface/http"
	"github.com/avetra/identity/internal/interface/middleware"
)

// AdminModule owns moderation endpoints. Everything here requires the admin
// role on top of a valid session.
type AdminModule struct {
	Handler  *handlers.AdminHandler
	Users    repository.UserRepository
	Sessions repository.SessionRepository
}

func NewAdminModule(h *handlers.AdminHandler, users repository.UserRepository, sessions repository.SessionRepository) *AdminModule {
	return &AdminModule{Handler: h, Users: users, Sessions: sessions}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(container.GetSessionCache(), m.Sessions, container.GetJWT()))
	admin.Use(middleware.RequireAdmin(m.Users))
	admin.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		admin.GET("/users/search", m.Handler.Search)
		admin.POST("/users/:id/ban", m.Handler.Ban)
		admin.POST("/users/:id/unban", m.Handler.Unban)
		admin.POST("/users/:id/deactivate", m.Handler.Deactivate)
		admin.POST("/users/:id/activate", m.Handler.Activate)
		admin.POST("/users/:id/impersonate", m.Handler.Impersonate)
	}
}
