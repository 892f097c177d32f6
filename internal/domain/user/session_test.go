package user

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, opts SessionOptions) *Session {
	t.Helper()
	s, err := NewSession(uuid.New(), uuid.New(), opts)
	require.NoError(t, err)
	return s
}

func TestNewSessionDefaults(t *testing.T) {
	s := newTestSession(t, SessionOptions{})

	assert.NotEmpty(t, s.Token())
	assert.False(t, s.IsExpired())
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), s.ExpiresAt(), time.Minute)
}

func TestNewSessionKeepsSuppliedToken(t *testing.T) {
	s := newTestSession(t, SessionOptions{Token: "opaque-token", TTL: time.Hour})
	assert.Equal(t, "opaque-token", s.Token())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt(), time.Minute)
}

func TestTerminateIdempotent(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: time.Hour})
	s.Terminate()
	first := s.ExpiresAt()
	assert.True(t, s.IsExpired())

	s.Terminate()
	assert.Equal(t, first, s.ExpiresAt())
}

func TestExtendMovesExpiryForward(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: time.Hour})
	require.NoError(t, s.Extend(48*time.Hour))
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), s.ExpiresAt(), time.Minute)
}

func TestExtendExpiredFails(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: time.Hour})
	s.Terminate()
	assert.ErrorIs(t, s.Extend(time.Hour), ErrSessionExpired)
}

func TestIssueTokenClaims(t *testing.T) {
	secret := []byte("test-secret")
	s := newTestSession(t, SessionOptions{TTL: time.Hour})

	signed, exp, err := s.IssueToken(secret, 24*time.Hour)
	require.NoError(t, err)
	// Credential must not outlive the session.
	assert.WithinDuration(t, s.ExpiresAt(), exp, time.Second)

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) { return secret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, s.UserID().String(), claims["sub"])
	assert.Equal(t, s.ID().String(), claims["sid"])
	assert.NotNil(t, claims["exp"])
}

func TestIssueTokenShortTTL(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: 48 * time.Hour})
	_, exp, err := s.IssueToken([]byte("k"), 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, time.Minute)
}

func TestIssueTokenRejectsExpiredSession(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: time.Hour})
	s.Terminate()
	_, _, err := s.IssueToken([]byte("k"), time.Minute)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestIssueTokenUnforgeable(t *testing.T) {
	s := newTestSession(t, SessionOptions{TTL: time.Hour})
	signed, _, err := s.IssueToken([]byte("right-secret"), time.Minute)
	require.NoError(t, err)

	_, err = jwt.Parse(signed, func(tok *jwt.Token) (any, error) { return []byte("wrong-secret"), nil })
	assert.Error(t, err)
}

func TestSessionRecordRoundTrip(t *testing.T) {
	imp := uuid.New()
	s := newTestSession(t, SessionOptions{IPAddress: "10.0.0.1", UserAgent: "cli", ImpersonatedBy: &imp})

	restored := ReconstituteSession(s.Record())
	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.Token(), restored.Token())
	assert.Equal(t, s.IPAddress(), restored.IPAddress())
	require.NotNil(t, restored.ImpersonatedBy())
	assert.Equal(t, imp, *restored.ImpersonatedBy())
	assert.Equal(t, s.ExpiresAt().Unix(), restored.ExpiresAt().Unix())
}
