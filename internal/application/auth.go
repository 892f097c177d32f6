package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
)

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// LoginResult is what a successful authentication hands back to the
// transport layer.
type LoginResult struct {
	User    *user.User
	Session *user.Session
	Tokens  TokenPair
}

// Register creates a user with a single credential identity. Email
// uniqueness is pre-checked for a friendly error; the unique index at the
// persistence boundary is the authority when two registrations race.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*user.User, error) {
	em, err := user.NewEmail(email)
	if err != nil {
		return nil, err
	}
	exists, err := s.Users.EmailExists(ctx, em, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	plain, err := user.NewPassword(password)
	if err != nil {
		return nil, err
	}
	hashed, err := s.hashPassword(ctx, plain)
	if err != nil {
		return nil, err
	}

	u, err := user.New(uuid.New(), email, firstName, lastName, user.RoleUser)
	if err != nil {
		return nil, err
	}
	if _, err := u.CreateIdentity(uuid.New(), user.ProviderCredential, em.String(), user.IdentityOptions{
		Email:    em.String(),
		Password: &hashed,
	}); err != nil {
		return nil, err
	}

	if err := s.save(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race on the unique email index.
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}
	s.indexUser(ctx, u)
	return u, nil
}

// Login authenticates by email and password and opens a session. Every
// credential-dependent failure reports ErrInvalidCredentials so callers
// cannot probe which addresses have accounts.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	em, err := user.NewEmail(email)
	if err != nil {
		return nil, user.ErrInvalidCredentials
	}
	u, err := s.Users.FindByEmail(ctx, em)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, user.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// Lapsed temporary bans are cleared explicitly before the login check,
	// and the unban is persisted regardless of how the login itself ends.
	if u.IsBanExpired() {
		u.Unban()
		if err := s.save(ctx, u); err != nil {
			return nil, err
		}
	}
	if err := u.Authenticate(password); err != nil {
		return nil, err
	}

	u.RecordLogin()
	sess, err := user.NewSession(uuid.New(), u.ID(), user.SessionOptions{
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, err
	}
	if err := u.SetCurrentSession(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, sess.Record()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("session_id", sess.ID()).Warn("session cache put failed")
		}
	}

	tokens, err := s.issueTokens(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Session: sess, Tokens: tokens}, nil
}

// Refresh re-issues a token pair from a still-live session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, user.ErrInvalidCredentials
	}
	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, user.ErrInvalidCredentials
	}
	u, err := s.Users.FindBySessionID(ctx, sid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, user.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.ID().String() != claims.UserID() {
		return nil, user.ErrInvalidCredentials
	}

	var sess *user.Session
	for _, c := range u.Sessions() {
		if c.ID() == sid {
			sess = c
			break
		}
	}
	if sess == nil || sess.IsExpired() {
		return nil, user.ErrInvalidCredentials
	}

	if u.IsBanExpired() {
		u.Unban()
	}
	if err := u.CheckCanLogin(); err != nil {
		return nil, err
	}
	if err := u.SetCurrentSession(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Session: sess, Tokens: tokens}, nil
}

// LoginAnonymous creates a throwaway account and opens a session for it in
// one step. The account can later be upgraded through ConvertAnonymous.
func (s *Service) LoginAnonymous(ctx context.Context, ip, userAgent string) (*LoginResult, error) {
	u := user.NewAnonymous(uuid.New(), nil)
	sess, err := user.NewSession(uuid.New(), u.ID(), user.SessionOptions{
		IPAddress: ip,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, err
	}
	if err := u.SetCurrentSession(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Put(ctx, sess.Record()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("session_id", sess.ID()).Warn("session cache put failed")
		}
	}

	tokens, err := s.issueTokens(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Session: sess, Tokens: tokens}, nil
}

// Impersonate opens a session on the target account that records which
// admin is behind it. The admin authenticates as themselves first; the
// router restricts this to the admin role.
func (s *Service) Impersonate(ctx context.Context, adminID, targetID uuid.UUID, ip, userAgent string) (*LoginResult, error) {
	u, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.IsBanExpired() {
		u.Unban()
	}
	if err := u.CheckCanLogin(); err != nil {
		return nil, err
	}
	sess, err := user.NewSession(uuid.New(), u.ID(), user.SessionOptions{
		IPAddress:      ip,
		UserAgent:      userAgent,
		ImpersonatedBy: &adminID,
	})
	if err != nil {
		return nil, err
	}
	if err := u.SetCurrentSession(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	tokens, err := s.issueTokens(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Session: sess, Tokens: tokens}, nil
}

// Logout terminates the session performing the call.
func (s *Service) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
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

// LogoutAll terminates every session of the user, including the current
// one.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	u.RevokeAllSessions()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.dropSessionCache(ctx, u)
	return nil
}

func (s *Service) issueTokens(sess *user.Session) (TokenPair, error) {
	access, aexp, err := sess.IssueToken(s.JWT.AccessSecret, s.JWT.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := sess.IssueToken(s.JWT.RefreshSecret, s.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  aexp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: rexp,
	}, nil
}
