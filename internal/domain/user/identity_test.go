package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashedPassword(t *testing.T, plain string) Password {
	t.Helper()
	p, err := NewPassword(plain)
	require.NoError(t, err)
	h, err := p.Hash()
	require.NoError(t, err)
	return h
}

func registeredUser(t *testing.T) *User {
	t.Helper()
	u, err := New(uuid.New(), "a@b.com", "Ada", "Lovelace", RoleUser)
	require.NoError(t, err)
	pw := hashedPassword(t, "Valid123!")
	_, err = u.CreateIdentity(uuid.New(), ProviderCredential, "a@b.com", IdentityOptions{Password: &pw})
	require.NoError(t, err)
	return u
}

func TestParseProvider(t *testing.T) {
	for _, raw := range []string{"credential", "google", "github", "facebook"} {
		_, err := ParseProvider(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseProvider("twitter")
	assert.ErrorIs(t, err, ErrIdentityProviderNotSupported)
}

func TestVerifyPasswordWrongProvider(t *testing.T) {
	u := registeredUser(t)
	ident, err := u.CreateIdentity(uuid.New(), ProviderGoogle, "google-123", IdentityOptions{
		Email: "a@gmail.com",
	})
	require.NoError(t, err)

	_, err = ident.VerifyPassword("Valid123!")
	assert.ErrorIs(t, err, ErrInvalidIdentityOperation)
}

func TestVerifyPasswordMatch(t *testing.T) {
	u := registeredUser(t)
	ident := u.Identities()[0]

	ok, err := ident.VerifyPassword("Valid123!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ident.VerifyPassword("Wrong123!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsTokenExpired(t *testing.T) {
	u := registeredUser(t)

	past := time.Now().Add(-time.Hour)
	expired, err := u.CreateIdentity(uuid.New(), ProviderGitHub, "gh-1", IdentityOptions{
		AccessToken:    "tok",
		TokenExpiresAt: &past,
	})
	require.NoError(t, err)
	assert.True(t, expired.IsTokenExpired())

	fresh, err := u.CreateIdentity(uuid.New(), ProviderFacebook, "fb-1", IdentityOptions{AccessToken: "tok"})
	require.NoError(t, err)
	// No expiry recorded means never expired.
	assert.False(t, fresh.IsTokenExpired())
}

func TestUpdateIdentityScopesNoOpOnEqualSet(t *testing.T) {
	u := registeredUser(t)
	ident, err := u.CreateIdentity(uuid.New(), ProviderGoogle, "google-1", IdentityOptions{
		Scopes: []string{"email", "profile"},
	})
	require.NoError(t, err)
	before := ident.UpdatedAt()

	require.NoError(t, u.UpdateIdentityScopes(ident.ID(), []string{"email", "profile"}))
	assert.Equal(t, before, ident.UpdatedAt())

	require.NoError(t, u.UpdateIdentityScopes(ident.ID(), []string{"email"}))
	assert.Equal(t, []string{"email"}, ident.Scopes())
}

func TestUpdateIdentityTokensRequiresOAuth(t *testing.T) {
	u := registeredUser(t)
	cred := u.Identities()[0]

	err := u.UpdateIdentityTokens(cred.ID(), "a", "r", nil)
	assert.ErrorIs(t, err, ErrInvalidIdentityOperation)

	oauth, err := u.CreateIdentity(uuid.New(), ProviderGoogle, "google-2", IdentityOptions{})
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, u.UpdateIdentityTokens(oauth.ID(), "access", "refresh", &exp))
	assert.Equal(t, "access", oauth.AccessToken())
	assert.Equal(t, "refresh", oauth.RefreshToken())
}

func TestCreateIdentityPasswordIffCredential(t *testing.T) {
	u, err := New(uuid.New(), "x@y.com", "", "", RoleUser)
	require.NoError(t, err)

	// Credential without a password is rejected.
	_, err = u.CreateIdentity(uuid.New(), ProviderCredential, "x@y.com", IdentityOptions{})
	assert.ErrorIs(t, err, ErrInvalidIdentityOperation)

	// OAuth with a password is rejected.
	pw := hashedPassword(t, "Valid123!")
	_, err = u.CreateIdentity(uuid.New(), ProviderGoogle, "g-1", IdentityOptions{Password: &pw})
	assert.ErrorIs(t, err, ErrInvalidIdentityOperation)
}

func TestIdentityRecordRoundTrip(t *testing.T) {
	u := registeredUser(t)
	ident := u.Identities()[0]

	restored := ReconstituteIdentity(ident.Record())
	assert.Equal(t, ident.ID(), restored.ID())
	assert.Equal(t, ident.UserID(), restored.UserID())
	assert.Equal(t, ProviderCredential, restored.Provider())

	ok, err := restored.VerifyPassword("Valid123!")
	require.NoError(t, err)
	assert.True(t, ok)
}
