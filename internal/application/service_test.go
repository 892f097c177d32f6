package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetra/identity/config"
	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/pkg/helpers"
)

// memStore is a map-backed stand-in for the Postgres repositories. It
// enforces the same version check and unique-email rule as the real one.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.UserRecord
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]user.UserRecord{}}
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Save(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec := u.Record()
	if rec.Version == 0 {
		for _, existing := range r.s.users {
			if existing.Email != "" && existing.Email == rec.Email {
				return repository.ErrConflict
			}
		}
		rec.Version = 1
	} else {
		stored, ok := r.s.users[rec.ID]
		if !ok || stored.Version != rec.Version {
			return repository.ErrConflict
		}
		rec.Version++
	}
	r.s.users[rec.ID] = rec
	u.MarkPersisted()
	return nil
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user.Reconstitute(rec), nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email user.Email) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		if rec.Email == email.String() {
			return user.Reconstitute(rec), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindBySessionID(_ context.Context, sessionID uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		for _, sr := range rec.Sessions {
			if sr.ID == sessionID {
				return user.Reconstitute(rec), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByIdentityID(_ context.Context, identityID uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		for _, ir := range rec.Identities {
			if ir.ID == identityID {
				return user.Reconstitute(rec), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) FindByProviderIdentity(_ context.Context, provider user.Provider, providerUserID string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		for _, ir := range rec.Identities {
			if ir.Provider == string(provider) && ir.ProviderUserID == providerUserID && !ir.Removed {
				return user.Reconstitute(rec), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) EmailExists(_ context.Context, email user.Email, excludeUserID *uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, rec := range r.s.users {
		if excludeUserID != nil && id == *excludeUserID {
			continue
		}
		if rec.Email != "" && rec.Email == email.String() {
			return true, nil
		}
	}
	return false, nil
}

type memSessionRepo struct{ s *memStore }

func (r *memSessionRepo) FindByID(_ context.Context, id uuid.UUID) (user.SessionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		for _, sr := range rec.Sessions {
			if sr.ID == id {
				return sr, nil
			}
		}
	}
	return user.SessionRecord{}, repository.ErrNotFound
}

func (r *memSessionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]user.SessionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return append([]user.SessionRecord(nil), rec.Sessions...), nil
}

func (r *memSessionRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }

func (r *memSessionRepo) DeleteByUser(context.Context, uuid.UUID, *uuid.UUID) (int64, error) {
	return 0, nil
}

type memIdentityRepo struct{ s *memStore }

func (r *memIdentityRepo) FindByID(_ context.Context, id uuid.UUID) (user.IdentityRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.users {
		for _, ir := range rec.Identities {
			if ir.ID == id {
				return ir, nil
			}
		}
	}
	return user.IdentityRecord{}, repository.ErrNotFound
}

func (r *memIdentityRepo) DeleteByUser(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (r *memIdentityRepo) DeleteRemoved(context.Context) (int64, error)           { return 0, nil }

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewService(Deps{
		Users:      &memUserRepo{s: store},
		Sessions:   &memSessionRepo{s: store},
		Identities: &memIdentityRepo{s: store},
		Logger:     logger,
		JWT:        helpers.NewJWTManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour),
		Cfg:        &config.Config{},
	})
	return svc, store
}

func registerVerified(t *testing.T, svc *Service, email, password string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	u, err := svc.Register(ctx, email, password, "Ada", "Lovelace")
	require.NoError(t, err)
	// Flip verification through the aggregate so login is allowed.
	loaded, err := svc.Users.FindByID(ctx, u.ID())
	require.NoError(t, err)
	loaded.VerifyEmail()
	require.NoError(t, svc.Users.Save(ctx, loaded))
	return u.ID()
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	res, err := svc.Login(ctx, "Ada@Example.com", "Valid123!", "203.0.113.9", "go-test")
	require.NoError(t, err)
	assert.Equal(t, uid, res.User.ID())
	require.NotNil(t, res.User.LastLoginAt())

	claims, err := svc.JWT.ParseAccessToken(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uid.String(), claims.UserID())
	assert.Equal(t, res.Session.ID().String(), claims.SessionID)

	rclaims, err := svc.JWT.ParseRefreshToken(res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID().String(), rclaims.SessionID)

	sessions, err := svc.ListSessions(ctx, uid)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "203.0.113.9", sessions[0].IPAddress)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, "ada@example.com", "Valid123!")

	_, wrongPassword := svc.Login(ctx, "ada@example.com", "Wrong123!", "", "")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "Valid123!", "", "")
	_, malformed := svc.Login(ctx, "not-an-email", "Valid123!", "", "")

	assert.ErrorIs(t, wrongPassword, user.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, user.ErrInvalidCredentials)
	assert.ErrorIs(t, malformed, user.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, "ada@example.com", "Valid123!")

	_, err := svc.Register(ctx, "ADA@example.com", "Other123!", "Other", "Person")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLoginUnverifiedEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "new@example.com", "Valid123!", "New", "User")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "new@example.com", "Valid123!", "", "")
	assert.ErrorIs(t, err, user.ErrEmailNotVerified)
}

func TestLoginClearsLapsedBan(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	// Age the ban directly in storage: banned with an expiry in the past.
	store.mu.Lock()
	rec := store.users[uid]
	past := time.Now().Add(-time.Hour)
	rec.Banned = true
	rec.BanReason = "spamming"
	rec.BanExpires = &past
	store.users[uid] = rec
	store.mu.Unlock()

	res, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	require.NoError(t, err)
	assert.False(t, res.User.IsBanned())

	// The unban must be durable, not just in-memory.
	reloaded, err := svc.Users.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.False(t, reloaded.IsBanned())
}

func TestLoginActiveBanRefused(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	store.mu.Lock()
	rec := store.users[uid]
	future := time.Now().Add(time.Hour)
	rec.Banned = true
	rec.BanReason = "spamming"
	rec.BanExpires = &future
	store.users[uid] = rec
	store.mu.Unlock()

	_, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	require.Error(t, err)
	assert.True(t, user.IsAccountBanned(err))
}

func TestRefreshReissuesForLiveSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registerVerified(t, svc, "ada@example.com", "Valid123!")

	res, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID(), refreshed.Session.ID())

	claims, err := svc.JWT.ParseAccessToken(refreshed.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID().String(), claims.SessionID)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	res, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, uid, res.Session.ID()))

	_, err = svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	first, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "laptop")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "phone")
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, uid, second.Session.ID(), "Valid123!", "Fresh456$"))

	// The session that changed the password survives; the other is gone.
	_, err = svc.Refresh(ctx, second.Tokens.RefreshToken)
	assert.NoError(t, err)
	_, err = svc.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ada@example.com", "Fresh456$", "", "")
	assert.NoError(t, err)
}

func TestAnonymousLoginAndConversion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.LoginAnonymous(ctx, "198.51.100.7", "mobile-app")
	require.NoError(t, err)
	assert.True(t, res.User.IsAnonymous())

	converted, err := svc.ConvertAnonymous(ctx, res.User.ID(), "upgraded@example.com")
	require.NoError(t, err)
	assert.False(t, converted.IsAnonymous())
	assert.Equal(t, "upgraded@example.com", converted.Email().String())
}

func TestBanRevokesSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	res, err := svc.Login(ctx, "ada@example.com", "Valid123!", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Ban(ctx, uid, "abuse", 0))

	_, err = svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestConcurrentSaveConflictSurfaces(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	uid := registerVerified(t, svc, "ada@example.com", "Valid123!")

	stale, err := svc.Users.FindByID(ctx, uid)
	require.NoError(t, err)
	fresh, err := svc.Users.FindByID(ctx, uid)
	require.NoError(t, err)

	fresh.Rename("Grace", "Hopper")
	require.NoError(t, svc.Users.Save(ctx, fresh))

	stale.Rename("Someone", "Else")
	err = svc.Users.Save(ctx, stale)
	assert.ErrorIs(t, err, repository.ErrConflict)
}
