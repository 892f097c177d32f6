package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSession(t *testing.T, u *User, current bool) *Session {
	t.Helper()
	s, err := NewSession(uuid.New(), u.ID(), SessionOptions{TTL: time.Hour})
	require.NoError(t, err)
	require.NoError(t, u.SetCurrentSession(s))
	if !current {
		u.currentSession = nil
	}
	return s
}

func eventNames(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventName())
	}
	return out
}

func TestNewUserDefaults(t *testing.T) {
	u, err := New(uuid.New(), "A@B.com", "Ada", "Lovelace", RoleUser)
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", u.Email().String())
	assert.True(t, u.IsActive())
	assert.False(t, u.IsEmailVerified())
	assert.False(t, u.IsBanned())
	assert.False(t, u.IsAnonymous())

	names := eventNames(u.PullEvents())
	assert.Equal(t, []string{"user.created"}, names)
}

func TestNewUserRejectsBadEmail(t *testing.T) {
	_, err := New(uuid.New(), "not-an-email", "", "", RoleUser)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestNewAnonymousEmitsBothEvents(t *testing.T) {
	acct := uuid.New()
	u := NewAnonymous(uuid.New(), &acct)

	assert.True(t, u.IsAnonymous())
	require.NotNil(t, u.AnonymousAccountID())
	names := eventNames(u.PullEvents())
	assert.Equal(t, []string{"user.created", "user.anonymous"}, names)
}

func TestRegisteredUserHasSingleCredentialIdentity(t *testing.T) {
	u := registeredUser(t)
	idents := u.Identities()
	require.Len(t, idents, 1)
	assert.Equal(t, ProviderCredential, idents[0].Provider())
}

func TestUnlinkLastIdentityFails(t *testing.T) {
	u := registeredUser(t)
	only := u.Identities()[0]

	err := u.UnlinkIdentity(only.ID())
	assert.ErrorIs(t, err, ErrCannotUnlinkLastIdentity)
	assert.False(t, only.Removed())
}

func TestUnlinkWithSibling(t *testing.T) {
	u := registeredUser(t)
	oauth, err := u.CreateIdentity(uuid.New(), ProviderGoogle, "g-1", IdentityOptions{})
	require.NoError(t, err)

	require.NoError(t, u.UnlinkIdentity(oauth.ID()))
	assert.True(t, oauth.Removed())

	// The credential identity is now the last one again.
	err = u.UnlinkIdentity(u.Identities()[0].ID())
	assert.ErrorIs(t, err, ErrCannotUnlinkLastIdentity)
}

func TestAuthenticate(t *testing.T) {
	u := registeredUser(t)
	u.VerifyEmail()

	assert.NoError(t, u.Authenticate("Valid123!"))
	assert.ErrorIs(t, u.Authenticate("Wrong123!"), ErrInvalidCredentials)
}

func TestAuthenticateWithoutCredentialIdentity(t *testing.T) {
	u, err := New(uuid.New(), "x@y.com", "", "", RoleUser)
	require.NoError(t, err)
	u.VerifyEmail()

	assert.ErrorIs(t, u.Authenticate("Valid123!"), ErrInvalidCredentials)
}

func TestCheckCanLoginPrecedence(t *testing.T) {
	// Deactivated outranks banned outranks unverified.
	u := registeredUser(t)
	u.Ban("abuse", 0)
	u.Deactivate()
	assert.ErrorIs(t, u.CheckCanLogin(), ErrAccountDeactivated)

	u = registeredUser(t)
	u.Ban("abuse", 0)
	err := u.CheckCanLogin()
	require.Error(t, err)
	assert.True(t, IsAccountBanned(err), "banned must outrank unverified, got %v", err)

	u = registeredUser(t)
	assert.ErrorIs(t, u.CheckCanLogin(), ErrEmailNotVerified)

	u.VerifyEmail()
	assert.NoError(t, u.CheckCanLogin())
}

func TestAnonymousSkipsVerificationCheck(t *testing.T) {
	u := NewAnonymous(uuid.New(), nil)
	assert.NoError(t, u.CheckCanLogin())
}

func TestBanRevokesAllSessions(t *testing.T) {
	u := registeredUser(t)
	a := addSession(t, u, false)
	b := addSession(t, u, false)
	u.PullEvents()

	u.Ban("tos violation", 0)

	assert.True(t, u.IsBanned())
	assert.Nil(t, u.BanExpires())
	assert.True(t, a.IsExpired())
	assert.True(t, b.IsExpired())
	assert.Equal(t, []string{"user.banned", "user.all_sessions_revoked"}, eventNames(u.PullEvents()))
}

func TestBanWithExpiry(t *testing.T) {
	u := registeredUser(t)
	u.Ban("spam", 7)

	require.NotNil(t, u.BanExpires())
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *u.BanExpires(), time.Minute)
	assert.False(t, u.IsBanExpired())
}

func TestBanIdempotent(t *testing.T) {
	u := registeredUser(t)
	u.Ban("first", 0)
	u.PullEvents()

	u.Ban("second", 3)

	assert.Equal(t, "first", u.BanReason())
	assert.Empty(t, u.PullEvents())
}

func TestUnbanKeepsSessionsTerminated(t *testing.T) {
	u := registeredUser(t)
	s := addSession(t, u, false)
	u.Ban("abuse", 0)
	require.True(t, s.IsExpired())

	u.Unban()

	assert.False(t, u.IsBanned())
	assert.Empty(t, u.BanReason())
	assert.Nil(t, u.BanExpires())
	// Ban does not un-revoke.
	assert.True(t, s.IsExpired())
}

func TestIsBanExpired(t *testing.T) {
	u := registeredUser(t)
	u.Ban("temp", 1)
	past := time.Now().Add(-time.Hour)
	u.banExpires = &past

	assert.True(t, u.IsBanExpired())
	u.Unban()
	assert.False(t, u.IsBanExpired())
}

func TestDeactivateRevokesSessionsAndIsIdempotent(t *testing.T) {
	u := registeredUser(t)
	a := addSession(t, u, false)
	b := addSession(t, u, false)
	u.PullEvents()

	u.Deactivate()
	assert.False(t, u.IsActive())
	assert.True(t, a.IsExpired())
	assert.True(t, b.IsExpired())
	assert.Equal(t, []string{"user.deactivated", "user.all_sessions_revoked"}, eventNames(u.PullEvents()))

	// Second call must not emit a duplicate event.
	u.Deactivate()
	assert.Empty(t, u.PullEvents())

	u.Activate()
	assert.True(t, u.IsActive())
	u.Activate()
	assert.Equal(t, []string{"user.activated"}, eventNames(u.PullEvents()))
}

func TestUpdatePasswordRevokesOtherSessions(t *testing.T) {
	u := registeredUser(t)
	b := addSession(t, u, false)
	c := addSession(t, u, false)
	a := addSession(t, u, true) // current

	require.NoError(t, u.UpdatePassword(hashedPassword(t, "Fresh456$")))

	assert.False(t, a.IsExpired())
	assert.True(t, b.IsExpired())
	assert.True(t, c.IsExpired())

	ok, err := u.Identities()[0].VerifyPassword("Fresh456$")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdatePasswordWithoutCredentialIdentity(t *testing.T) {
	u, err := New(uuid.New(), "x@y.com", "", "", RoleUser)
	require.NoError(t, err)

	err = u.UpdatePassword(hashedPassword(t, "Fresh456$"))
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestUpdatePasswordNoCurrentSessionRevokesAll(t *testing.T) {
	u := registeredUser(t)
	a := addSession(t, u, false)
	b := addSession(t, u, false)

	require.NoError(t, u.UpdatePassword(hashedPassword(t, "Fresh456$")))

	assert.True(t, a.IsExpired())
	assert.True(t, b.IsExpired())
}

func TestSetCurrentSessionRejectsForeignSession(t *testing.T) {
	u := registeredUser(t)
	other, err := NewSession(uuid.New(), uuid.New(), SessionOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, u.SetCurrentSession(other), ErrSessionNotOwned)
}

func TestRevokeSession(t *testing.T) {
	u := registeredUser(t)
	s := addSession(t, u, false)

	require.NoError(t, u.RevokeSession(s.ID()))
	assert.True(t, s.IsExpired())

	assert.ErrorIs(t, u.RevokeSession(uuid.New()), ErrSessionNotFound)
}

func TestConvertToRegular(t *testing.T) {
	acct := uuid.New()
	u := NewAnonymous(uuid.New(), &acct)
	u.PullEvents()

	require.NoError(t, u.ConvertToRegular("Real@Mail.com"))

	assert.False(t, u.IsAnonymous())
	assert.Nil(t, u.AnonymousAccountID())
	assert.Equal(t, "real@mail.com", u.Email().String())
	assert.Equal(t, []string{"user.regular"}, eventNames(u.PullEvents()))

	assert.ErrorIs(t, u.ConvertToRegular("again@mail.com"), ErrNotAnonymous)
}

func TestRecordLogin(t *testing.T) {
	u := registeredUser(t)
	u.PullEvents()
	require.Nil(t, u.LastLoginAt())

	u.RecordLogin()

	require.NotNil(t, u.LastLoginAt())
	assert.Equal(t, []string{"user.logged_in"}, eventNames(u.PullEvents()))
}

func TestRenameEmitsProfileUpdated(t *testing.T) {
	u := registeredUser(t)
	u.PullEvents()

	u.Rename("Grace", "Hopper")
	assert.Equal(t, "Grace", u.FirstName())
	assert.Equal(t, []string{"user.profile_updated"}, eventNames(u.PullEvents()))

	// Same values are a no-op.
	u.Rename("Grace", "Hopper")
	assert.Empty(t, u.PullEvents())
}

func TestReconstituteRunsNoCreationSideEffects(t *testing.T) {
	u := registeredUser(t)
	u.VerifyEmail()
	addSession(t, u, false)
	u.PullEvents()

	restored := Reconstitute(u.Record())

	assert.Empty(t, restored.PullEvents())
	assert.Equal(t, u.ID(), restored.ID())
	assert.True(t, restored.IsEmailVerified())
	assert.Len(t, restored.Identities(), 1)
	assert.Len(t, restored.Sessions(), 1)
	assert.Nil(t, restored.CurrentSession())

	require.NoError(t, restored.Authenticate("Valid123!"))
}
