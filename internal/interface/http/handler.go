// Package handlers contains the Gin HTTP handlers. They translate requests
// into application service calls and domain errors into status codes.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	userapp "github.com/avetra/identity/internal/application"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/internal/interface/middleware"
	"github.com/avetra/identity/pkg/response"
)

func ok[T any](c *gin.Context, status int, data T, message string, meta any) {
	resp := response.Success(c, status, data, message, meta)
	c.JSON(resp.Status, resp)
}

func fail(c *gin.Context, status int, message string, details any) {
	resp := response.Error[any](c, status, message, details)
	c.JSON(resp.Status, resp)
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.CtxUserID))
	return id, err == nil
}

func currentSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.CtxSessionID))
	return id, err == nil
}

// failDomain maps domain and application errors onto HTTP statuses. Unknown
// errors become a 500 without leaking their message.
func failDomain(c *gin.Context, err error) {
	var banned *user.AccountBannedError
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.As(err, &banned):
		details := gin.H{"reason": banned.Reason}
		if banned.ExpiresAt != nil {
			details["expires_at"] = banned.ExpiresAt.Format(time.RFC3339)
		}
		fail(c, http.StatusForbidden, "account banned", details)
	case errors.Is(err, user.ErrAccountDeactivated):
		fail(c, http.StatusForbidden, "account deactivated", nil)
	case errors.Is(err, user.ErrEmailNotVerified):
		fail(c, http.StatusForbidden, "email not verified", nil)
	case errors.Is(err, userapp.ErrEmailAlreadyExists):
		fail(c, http.StatusConflict, "email already registered", nil)
	case errors.Is(err, userapp.ErrUserNotFound):
		fail(c, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, userapp.ErrInvalidToken):
		fail(c, http.StatusBadRequest, "invalid or expired token", nil)
	case errors.Is(err, user.ErrInvalidEmail):
		fail(c, http.StatusBadRequest, "invalid email address", nil)
	case errors.Is(err, user.ErrPasswordTooShort),
		errors.Is(err, user.ErrPasswordTooLong),
		errors.Is(err, user.ErrPasswordTooWeak):
		fail(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, user.ErrSessionNotFound),
		errors.Is(err, user.ErrSessionNotOwned):
		fail(c, http.StatusNotFound, "session not found", nil)
	case errors.Is(err, user.ErrSessionExpired):
		fail(c, http.StatusUnauthorized, "session expired", nil)
	case errors.Is(err, user.ErrCannotUnlinkLastIdentity):
		fail(c, http.StatusConflict, "cannot unlink the last identity", nil)
	case errors.Is(err, user.ErrIdentityNotFound):
		fail(c, http.StatusNotFound, "identity not found", nil)
	case errors.Is(err, user.ErrIdentityProviderNotSupported):
		fail(c, http.StatusBadRequest, "identity provider not supported", nil)
	case errors.Is(err, user.ErrNotAnonymous):
		fail(c, http.StatusConflict, "account is not anonymous", nil)
	default:
		fail(c, http.StatusInternalServerError, "internal error", nil)
	}
}

func userPayload(u *user.User) gin.H {
	out := gin.H{
		"id":           u.ID().String(),
		"first_name":   u.FirstName(),
		"last_name":    u.LastName(),
		"role":         string(u.Role()),
		"is_active":    u.IsActive(),
		"is_verified":  u.IsEmailVerified(),
		"is_anonymous": u.IsAnonymous(),
		"image":        u.Image(),
		"created_at":   u.CreatedAt(),
		"updated_at":   u.UpdatedAt(),
	}
	if !u.Email().IsZero() {
		out["email"] = u.Email().String()
	}
	return out
}

func sessionPayload(rec user.SessionRecord, currentID uuid.UUID) gin.H {
	out := gin.H{
		"id":         rec.ID.String(),
		"ip_address": rec.IPAddress,
		"user_agent": rec.UserAgent,
		"expires_at": rec.ExpiresAt,
		"created_at": rec.CreatedAt,
		"current":    rec.ID == currentID,
	}
	if rec.ImpersonatedBy != nil {
		out["impersonated_by"] = rec.ImpersonatedBy.String()
	}
	return out
}
