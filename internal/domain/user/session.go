package user

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the session lifetime applied when the caller does not
// choose one (7 days).
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is one live, time-bounded login instance. ExpiresAt only moves
// forward via Extend and only backward (to now) via Terminate.
type Session struct {
	id             uuid.UUID
	userID         uuid.UUID
	token          string
	ipAddress      string
	userAgent      string
	impersonatedBy *uuid.UUID
	expiresAt      time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// SessionOptions carries the optional attributes of a new session.
type SessionOptions struct {
	Token          string
	IPAddress      string
	UserAgent      string
	ImpersonatedBy *uuid.UUID
	TTL            time.Duration
}

// NewSession creates a session for the given user. A random opaque token is
// generated when none is supplied.
func NewSession(id, userID uuid.UUID, opts SessionOptions) (*Session, error) {
	token := opts.Token
	if token == "" {
		t, err := generateSessionToken()
		if err != nil {
			return nil, err
		}
		token = t
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &Session{
		id:             id,
		userID:         userID,
		token:          token,
		ipAddress:      opts.IPAddress,
		userAgent:      opts.UserAgent,
		impersonatedBy: opts.ImpersonatedBy,
		expiresAt:      now.Add(ttl),
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Session) ID() uuid.UUID              { return s.id }
func (s *Session) UserID() uuid.UUID          { return s.userID }
func (s *Session) Token() string              { return s.token }
func (s *Session) IPAddress() string          { return s.ipAddress }
func (s *Session) UserAgent() string          { return s.userAgent }
func (s *Session) ImpersonatedBy() *uuid.UUID { return s.impersonatedBy }
func (s *Session) ExpiresAt() time.Time       { return s.expiresAt }
func (s *Session) CreatedAt() time.Time       { return s.createdAt }
func (s *Session) UpdatedAt() time.Time       { return s.updatedAt }

func (s *Session) IsExpired() bool { return time.Now().After(s.expiresAt) }

// Terminate forces expiry to now. Idempotent: already-expired sessions are
// left untouched.
func (s *Session) Terminate() {
	if s.IsExpired() {
		return
	}
	now := time.Now()
	s.expiresAt = now
	s.updatedAt = now
}

// Extend pushes the expiry forward from now. Expired sessions cannot be
// resurrected.
func (s *Session) Extend(d time.Duration) error {
	if s.IsExpired() {
		return ErrSessionExpired
	}
	now := time.Now()
	s.expiresAt = now.Add(d)
	s.updatedAt = now
	return nil
}

// IssueToken produces a signed HS256 credential for this session carrying
// sub (user id), sid (session id) and exp. The credential never outlives the
// session: exp = min(session expiry, now+ttl).
func (s *Session) IssueToken(secret []byte, ttl time.Duration) (string, time.Time, error) {
	if s.IsExpired() {
		return "", time.Time{}, ErrSessionExpired
	}
	now := time.Now()
	exp := now.Add(ttl)
	if exp.After(s.expiresAt) {
		exp = s.expiresAt
	}
	claims := jwt.MapClaims{
		"sub": s.userID.String(),
		"sid": s.id.String(),
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SessionRecord is the persistence snapshot of a Session.
type SessionRecord struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Token          string
	IPAddress      string
	UserAgent      string
	ImpersonatedBy *uuid.UUID
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReconstituteSession rebuilds a Session from storage.
func ReconstituteSession(rec SessionRecord) *Session {
	return &Session{
		id:             rec.ID,
		userID:         rec.UserID,
		token:          rec.Token,
		ipAddress:      rec.IPAddress,
		userAgent:      rec.UserAgent,
		impersonatedBy: rec.ImpersonatedBy,
		expiresAt:      rec.ExpiresAt,
		createdAt:      rec.CreatedAt,
		updatedAt:      rec.UpdatedAt,
	}
}

// Record snapshots the session for persistence.
func (s *Session) Record() SessionRecord {
	return SessionRecord{
		ID:             s.id,
		UserID:         s.userID,
		Token:          s.token,
		IPAddress:      s.ipAddress,
		UserAgent:      s.userAgent,
		ImpersonatedBy: s.impersonatedBy,
		ExpiresAt:      s.expiresAt,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
}
