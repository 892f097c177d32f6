package user

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies an authentication method.
type Provider string

const (
	ProviderCredential Provider = "credential"
	ProviderGoogle     Provider = "google"
	ProviderGitHub     Provider = "github"
	ProviderFacebook   Provider = "facebook"
)

// ParseProvider validates a raw provider name.
func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(raw); p {
	case ProviderCredential, ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return p, nil
	}
	return "", ErrIdentityProviderNotSupported
}

// IsOAuth reports whether the provider is a federated OAuth provider.
func (p Provider) IsOAuth() bool { return p != ProviderCredential }

// Identity is one authentication method bound to a user. Identities are
// created through User.CreateIdentity and their security-sensitive state
// (password, tokens, scopes, removal) is only mutable through the owning
// aggregate: the mutators below are unexported on purpose.
type Identity struct {
	id             uuid.UUID
	userID         uuid.UUID
	provider       Provider
	providerUserID string
	email          string
	name           string
	scopes         []string
	accessToken    string
	refreshToken   string
	tokenExpiresAt *time.Time
	password       Password
	removed        bool
	createdAt      time.Time
	updatedAt      time.Time
}

func (i *Identity) ID() uuid.UUID              { return i.id }
func (i *Identity) UserID() uuid.UUID          { return i.userID }
func (i *Identity) Provider() Provider         { return i.provider }
func (i *Identity) ProviderUserID() string     { return i.providerUserID }
func (i *Identity) Email() string              { return i.email }
func (i *Identity) Name() string               { return i.name }
func (i *Identity) AccessToken() string        { return i.accessToken }
func (i *Identity) RefreshToken() string       { return i.refreshToken }
func (i *Identity) TokenExpiresAt() *time.Time { return i.tokenExpiresAt }
func (i *Identity) Removed() bool              { return i.removed }
func (i *Identity) CreatedAt() time.Time       { return i.createdAt }
func (i *Identity) UpdatedAt() time.Time       { return i.updatedAt }

func (i *Identity) Scopes() []string {
	out := make([]string, len(i.scopes))
	copy(out, i.scopes)
	return out
}

// VerifyPassword checks a plaintext candidate against the stored hash.
// Only valid for credential identities with a hash set.
func (i *Identity) VerifyPassword(plain string) (bool, error) {
	if i.provider != ProviderCredential || i.password.IsZero() {
		return false, ErrInvalidIdentityOperation
	}
	return i.password.Verify(plain), nil
}

// IsTokenExpired reports whether the OAuth access token has expired.
// Identities without a recorded expiry never report expired.
func (i *Identity) IsTokenExpired() bool {
	if i.tokenExpiresAt == nil {
		return false
	}
	return time.Now().After(*i.tokenExpiresAt)
}

func (i *Identity) setPassword(p Password) {
	i.password = p
	i.touch()
}

func (i *Identity) updateTokens(access, refresh string, expiresAt *time.Time) {
	i.accessToken = access
	i.refreshToken = refresh
	i.tokenExpiresAt = expiresAt
	i.touch()
}

// updateScopes replaces the scope set. Returns false without touching
// updatedAt when the new set is structurally equal to the current one.
func (i *Identity) updateScopes(scopes []string) bool {
	if scopesEqual(i.scopes, scopes) {
		return false
	}
	i.scopes = make([]string, len(scopes))
	copy(i.scopes, scopes)
	i.touch()
	return true
}

func (i *Identity) updateProfile(email, name string) {
	if email != "" {
		i.email = email
	}
	if name != "" {
		i.name = name
	}
	i.touch()
}

// markRemoved is a logical flag, not physical deletion. The aggregate
// guarantees at least one sibling identity remains before calling it.
func (i *Identity) markRemoved() {
	i.removed = true
	i.touch()
}

func (i *Identity) touch() { i.updatedAt = time.Now() }

func scopesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if a[idx] != b[idx] {
			return false
		}
	}
	return true
}

// IdentityRecord is the persistence snapshot of an Identity.
type IdentityRecord struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Scopes         []string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	PasswordHash   string
	Removed        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReconstituteIdentity rebuilds an Identity from storage without running
// creation side effects.
func ReconstituteIdentity(rec IdentityRecord) *Identity {
	return &Identity{
		id:             rec.ID,
		userID:         rec.UserID,
		provider:       Provider(rec.Provider),
		providerUserID: rec.ProviderUserID,
		email:          rec.Email,
		name:           rec.Name,
		scopes:         append([]string(nil), rec.Scopes...),
		accessToken:    rec.AccessToken,
		refreshToken:   rec.RefreshToken,
		tokenExpiresAt: rec.TokenExpiresAt,
		password:       PasswordFromHash(rec.PasswordHash),
		removed:        rec.Removed,
		createdAt:      rec.CreatedAt,
		updatedAt:      rec.UpdatedAt,
	}
}

// Record snapshots the identity for persistence.
func (i *Identity) Record() IdentityRecord {
	return IdentityRecord{
		ID:             i.id,
		UserID:         i.userID,
		Provider:       string(i.provider),
		ProviderUserID: i.providerUserID,
		Email:          i.email,
		Name:           i.name,
		Scopes:         append([]string(nil), i.scopes...),
		AccessToken:    i.accessToken,
		RefreshToken:   i.refreshToken,
		TokenExpiresAt: i.tokenExpiresAt,
		PasswordHash:   i.password.HashedValue(),
		Removed:        i.removed,
		CreatedAt:      i.createdAt,
		UpdatedAt:      i.updatedAt,
	}
}
