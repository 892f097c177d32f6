package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/avetra/identity/internal/application"
	"github.com/avetra/identity/pkg/helpers"
	"github.com/avetra/identity/pkg/validation"
)

type AuthHandler struct {
	Svc     *userapp.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *userapp.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,strongpwd"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusCreated, userPayload(u), "registered", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password, clientIP(c), c.GetHeader("User-Agent"))
	if err != nil {
		failDomain(c, err)
		return
	}
	h.respondWithSession(c, res, "login successful")
}

// LoginAnonymous POST /api/auth/anonymous
func (h *AuthHandler) LoginAnonymous(c *gin.Context) {
	res, err := h.Svc.LoginAnonymous(c.Request.Context(), clientIP(c), c.GetHeader("User-Agent"))
	if err != nil {
		failDomain(c, err)
		return
	}
	h.respondWithSession(c, res, "anonymous session created")
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh := refreshTokenFrom(c)
	if refresh == "" {
		fail(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		failDomain(c, err)
		return
	}
	h.respondWithSession(c, res, "token refreshed")
}

// Logout POST /api/auth/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	uid, okUID := currentUserID(c)
	sid, okSID := currentSessionID(c)
	if !okUID || !okSID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.Svc.Logout(c.Request.Context(), uid, sid); err != nil {
		failDomain(c, err)
		return
	}
	h.Cookies.Clear(c)
	ok(c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// LogoutAll POST /api/auth/logout-all (auth required)
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.Svc.LogoutAll(c.Request.Context(), uid); err != nil {
		failDomain(c, err)
		return
	}
	h.Cookies.Clear(c)
	ok(c, http.StatusOK, gin.H{"logged_out": true}, "logged out everywhere", nil)
}

// VerifyInit POST /api/auth/verify/init (auth required)
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	link, already, err := h.Svc.VerifyEmailInit(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	if already {
		ok(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}
	ok(c, http.StatusOK, gin.H{"verify_link": link}, "verification link", nil)
}

// VerifyConfirm POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.VerifyEmailConfirm(c.Request.Context(), req.Token); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always answers 200 so callers cannot probe which addresses exist.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if _, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.Logger.WithError(err).Warn("password reset request failed")
	}
	ok(c, http.StatusOK, gin.H{"requested": true}, "if the address exists, a reset email was sent", nil)
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,strongpwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}

// ChangePassword POST /api/auth/password (auth required)
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	uid, okUID := currentUserID(c)
	sid, okSID := currentSessionID(c)
	if !okUID || !okSID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,strongpwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, sid, req.CurrentPassword, req.NewPassword); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"changed": true}, "password changed", nil)
}

func (h *AuthHandler) respondWithSession(c *gin.Context, res *userapp.LoginResult, msg string) {
	pair := res.Tokens
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	ok(c, http.StatusOK, gin.H{
		"user":          userPayload(res.User),
		"session_id":    res.Session.ID().String(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, msg, map[string]any{
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	})
}

func refreshTokenFrom(c *gin.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	token, err := c.Cookie("refresh_token")
	if err != nil {
		return ""
	}
	return token
}
