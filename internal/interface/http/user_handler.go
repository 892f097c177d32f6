package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	userapp "github.com/avetra/identity/internal/application"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/pkg/validation"
)

const maxAvatarBytes = 5 << 20

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

// GetProfile GET /api/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, userPayload(u), "profile", nil)
}

// UpdateProfile PUT /api/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		FirstName string `json:"first_name" binding:"max=100"`
		LastName  string `json:"last_name" binding:"max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, req.FirstName, req.LastName)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, userPayload(u), "profile updated", nil)
}

// UploadAvatar POST /api/users/me/avatar (multipart field "avatar")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing avatar file", nil)
		return
	}
	if fh.Size > maxAvatarBytes {
		fail(c, http.StatusRequestEntityTooLarge, "avatar too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable avatar file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"image": url}, "avatar uploaded", nil)
}

// ConvertAnonymous POST /api/users/me/convert {email}
func (h *UserHandler) ConvertAnonymous(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.ConvertAnonymous(c.Request.Context(), uid, req.Email)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, userPayload(u), "account upgraded", nil)
}

// LinkIdentity POST /api/users/me/identities
func (h *UserHandler) LinkIdentity(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Provider       string     `json:"provider" binding:"required,oneof=google github facebook"`
		ProviderUserID string     `json:"provider_user_id" binding:"required"`
		Email          string     `json:"email" binding:"omitempty,email"`
		Name           string     `json:"name"`
		AccessToken    string     `json:"access_token"`
		RefreshToken   string     `json:"refresh_token"`
		TokenExpiresAt *time.Time `json:"token_expires_at"`
		Scopes         []string   `json:"scopes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	provider, err := user.ParseProvider(req.Provider)
	if err != nil {
		failDomain(c, err)
		return
	}
	ident, err := h.Svc.LinkOAuthIdentity(c.Request.Context(), uid, provider, req.ProviderUserID,
		req.Email, req.Name, req.AccessToken, req.RefreshToken, req.TokenExpiresAt, req.Scopes)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"identity_id": ident.ID().String()}, "identity linked", nil)
}

// UnlinkIdentity DELETE /api/users/me/identities/:id
func (h *UserHandler) UnlinkIdentity(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid identity id", nil)
		return
	}
	if err := h.Svc.UnlinkIdentity(c.Request.Context(), uid, identityID); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"unlinked": true}, "identity unlinked", nil)
}

// ListSessions GET /api/users/me/sessions
func (h *UserHandler) ListSessions(c *gin.Context) {
	uid, okUID := currentUserID(c)
	sid, _ := currentSessionID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	recs, err := h.Svc.ListSessions(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	out := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		out = append(out, sessionPayload(rec, sid))
	}
	ok(c, http.StatusOK, out, "sessions", nil)
}

// RevokeSession DELETE /api/users/me/sessions/:id
func (h *UserHandler) RevokeSession(c *gin.Context) {
	uid, okUID := currentUserID(c)
	if !okUID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid session id", nil)
		return
	}
	if err := h.Svc.RevokeSession(c.Request.Context(), uid, sessionID); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"revoked": true}, "session revoked", nil)
}

// RevokeOtherSessions POST /api/users/me/sessions/revoke-others
func (h *UserHandler) RevokeOtherSessions(c *gin.Context) {
	uid, okUID := currentUserID(c)
	sid, okSID := currentSessionID(c)
	if !okUID || !okSID {
		fail(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.Svc.RevokeOtherSessions(c.Request.Context(), uid, sid); err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"revoked": true}, "other sessions revoked", nil)
}
