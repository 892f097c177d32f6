package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/pkg/helpers"
	"github.com/avetra/identity/pkg/mailer"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = 30 * time.Minute
)

// VerifyEmailInit issues a one-shot verification token and enqueues the
// verification email. Idempotent for already-verified users.
func (s *Service) VerifyEmailInit(ctx context.Context, userID uuid.UUID) (link string, alreadyVerified bool, err error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if u.IsEmailVerified() {
		return "", true, nil
	}
	token, err := helpers.GenerateToken(32)
	if err != nil {
		return "", false, err
	}
	if err := s.Redis.Set(ctx, helpers.KeyVerifyToken(token), u.ID().String(), verifyTokenTTL).Err(); err != nil {
		return "", false, err
	}
	link = s.Cfg.VerifyEmailURL + "?token=" + token

	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email().String(),
		Template: mailer.TemplateVerifyEmail,
		Data: map[string]any{
			"Name":      displayName(u),
			"VerifyURL": link,
			"ExpiresAt": time.Now().Add(verifyTokenTTL),
		},
	})
	return link, false, nil
}

// VerifyEmailConfirm redeems a verification token and marks the address
// verified.
func (s *Service) VerifyEmailConfirm(ctx context.Context, token string) error {
	uid, err := s.Redis.Get(ctx, helpers.KeyVerifyToken(token)).Result()
	if err != nil || uid == "" {
		return ErrInvalidToken
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return ErrInvalidToken
	}
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	u.VerifyEmail()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.Redis.Del(ctx, helpers.KeyVerifyToken(token))
	s.indexUser(ctx, u)
	return nil
}

// RequestPasswordReset issues a high-entropy reset token bound to an expiry.
// Unknown addresses succeed silently so the endpoint cannot be used to
// enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (link string, err error) {
	em, err := user.NewEmail(email)
	if err != nil {
		return "", nil
	}
	u, err := s.Users.FindByEmail(ctx, em)
	if err != nil {
		// Unknown address or lookup failure: same silent outcome.
		if s.Logger != nil && !isNotFound(err) {
			s.Logger.WithError(err).Warn("password reset lookup failed")
		}
		return "", nil
	}
	token, err := helpers.GenerateToken(32)
	if err != nil {
		return "", err
	}
	if err := s.Redis.Set(ctx, helpers.KeyResetToken(token), u.ID().String(), resetTokenTTL).Err(); err != nil {
		return "", err
	}
	link = s.Cfg.ResetPasswordURL + "?token=" + token

	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email().String(),
		Template: mailer.TemplateForgotPassword,
		Data: map[string]any{
			"Name":      displayName(u),
			"ResetURL":  link,
			"ExpiresAt": time.Now().Add(resetTokenTTL),
		},
	})
	return link, nil
}

// ResetPassword redeems a reset token and replaces the credential password.
// No session performs this change, so every session is revoked.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	uid, err := s.Redis.Get(ctx, helpers.KeyResetToken(token)).Result()
	if err != nil || uid == "" {
		return ErrInvalidToken
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return ErrInvalidToken
	}
	plain, err := user.NewPassword(newPassword)
	if err != nil {
		return err
	}
	hashed, err := s.hashPassword(ctx, plain)
	if err != nil {
		return err
	}
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if err := u.UpdatePassword(hashed); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.Redis.Del(ctx, helpers.KeyResetToken(token))
	s.dropSessionCache(ctx, u)
	return nil
}

// ChangePassword replaces the password for an authenticated user. The
// session performing the change survives; all others are revoked.
func (s *Service) ChangePassword(ctx context.Context, userID, currentSessionID uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.Authenticate(currentPassword); err != nil {
		return err
	}
	plain, err := user.NewPassword(newPassword)
	if err != nil {
		return err
	}
	hashed, err := s.hashPassword(ctx, plain)
	if err != nil {
		return err
	}
	if err := s.markCurrentSession(u, currentSessionID); err != nil {
		return err
	}
	if err := u.UpdatePassword(hashed); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	return nil
}

// Ban blocks an account; days <= 0 means permanent.
func (s *Service) Ban(ctx context.Context, userID uuid.UUID, reason string, days int) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Ban(reason, days)
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	s.indexUser(ctx, u)
	return nil
}

func (s *Service) Unban(ctx context.Context, userID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Unban()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.indexUser(ctx, u)
	return nil
}

func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Deactivate()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	s.indexUser(ctx, u)
	return nil
}

func (s *Service) Activate(ctx context.Context, userID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Activate()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.indexUser(ctx, u)
	return nil
}

// RevokeSession terminates one named session of the user.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.RevokeSession(sessionID); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	return nil
}

// RevokeOtherSessions terminates every session except the calling one.
func (s *Service) RevokeOtherSessions(ctx context.Context, userID, currentSessionID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.markCurrentSession(u, currentSessionID); err != nil {
		return err
	}
	u.RevokeOtherSessions()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	return nil
}

// ListSessions returns the stored sessions of a user, newest first.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]user.SessionRecord, error) {
	return s.Sessions.ListByUser(ctx, userID)
}

func (s *Service) markCurrentSession(u *user.User, sessionID uuid.UUID) error {
	for _, sess := range u.Sessions() {
		if sess.ID() == sessionID {
			return u.SetCurrentSession(sess)
		}
	}
	return user.ErrSessionNotFound
}

func (s *Service) enqueueEmail(ctx context.Context, job mailer.EmailJob) {
	if s.Email == nil || s.Cfg == nil || !s.Cfg.MailSendEnabled {
		return
	}
	if err := s.Email.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", job.Template).Warn("enqueue email failed")
	}
}

func displayName(u *user.User) string {
	name := u.FirstName()
	if u.LastName() != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName()
	}
	if name == "" {
		name = u.Email().String()
	}
	return name
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, repository.ErrNotFound)
}
