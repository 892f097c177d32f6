package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avetra/identity/internal/container"
	"github.com/avetra/identity/internal/domain/repository"
	handlers "github.com/avetra/identity/internal/interface/http"
	"github.com/avetra/identity/internal/interface/middleware"
)

// AuthModule owns registration, login, token refresh and the email
// verification and password reset flows.
type AuthModule struct {
	Handler  *handlers.AuthHandler
	Sessions repository.SessionRepository
}

func NewAuthModule(h *handlers.AuthHandler, sessions repository.SessionRepository) *AuthModule {
	return &AuthModule{Handler: h, Sessions: sessions}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	registerLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP(), nil)
	verifyConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register", registerLimiter, m.Handler.Register)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/anonymous", loginLimiter, m.Handler.LoginAnonymous)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/verify/confirm", verifyConfirmLimiter, m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetSessionCache(), m.Sessions, container.GetJWT()))
	auth.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/auth/logout", m.Handler.Logout)
		auth.POST("/auth/logout-all", m.Handler.LogoutAll)
		auth.POST("/auth/password", m.Handler.ChangePassword)

		verifyInit := auth.Group("/")
		verifyInit.Use(middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByUserID(), nil))
		verifyInit.POST("/auth/verify/init", m.Handler.VerifyInit)
	}
}
