package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/avetra/identity/internal/application"
	"github.com/avetra/identity/pkg/validation"
)

// AdminHandler exposes moderation endpoints. The router guards them with
// the admin role check.
type AdminHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewAdminHandler(svc *userapp.Service, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Logger: logger}
}

func targetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid user id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// Ban POST /api/admin/users/:id/ban {reason, days}
// days == 0 means permanent.
func (h *AdminHandler) Ban(c *gin.Context) {
	id, okID := targetID(c)
	if !okID {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required,max=500"`
		Days   int    `json:"days" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.Ban(c.Request.Context(), id, req.Reason, req.Days); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"banned": true}, "user banned", nil)
}

// Unban POST /api/admin/users/:id/unban
func (h *AdminHandler) Unban(c *gin.Context) {
	id, okID := targetID(c)
	if !okID {
		return
	}
	if err := h.Svc.Unban(c.Request.Context(), id); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"banned": false}, "user unbanned", nil)
}

// Deactivate POST /api/admin/users/:id/deactivate
func (h *AdminHandler) Deactivate(c *gin.Context) {
	id, okID := targetID(c)
	if !okID {
		return
	}
	if err := h.Svc.Deactivate(c.Request.Context(), id); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"active": false}, "user deactivated", nil)
}

// Activate POST /api/admin/users/:id/activate
func (h *AdminHandler) Activate(c *gin.Context) {
	id, okID := targetID(c)
	if !okID {
		return
	}
	if err := h.Svc.Activate(c.Request.Context(), id); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"active": true}, "user activated", nil)
}

// Search GET /api/admin/users/search?q=&size=
func (h *AdminHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		fail(c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size := 10
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid size", nil)
			return
		}
		size = n
	}
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

// Impersonate POST /api/admin/users/:id/impersonate
func (h *AdminHandler) Impersonate(c *gin.Context) {
	adminID, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id, okID := targetID(c)
	if !okID {
		return
	}
	res, err := h.Svc.Impersonate(c.Request.Context(), adminID, id, clientIP(c), c.GetHeader("User-Agent"))
	if err != nil {
		failDomain(c, err)
		return
	}
	pair := res.Tokens
	ok(c, http.StatusOK, gin.H{
		"user":          userPayload(res.User),
		"session_id":    res.Session.ID().String(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "impersonation session created", map[string]any{
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	})
}
