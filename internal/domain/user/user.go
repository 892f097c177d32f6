// Package user contains the authentication domain model: the User aggregate
// root, its Identity and Session child entities, and the Email and Password
// value objects. All consistency-preserving mutations flow through User;
// child mutators are unexported so nothing outside this package can bypass
// the aggregate's invariants. The package performs no I/O beyond password
// hashing and token signing primitives.
package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the aggregate root for the authentication domain. It owns the
// identity and session collections and enforces the cross-entity invariants:
// a registered user always keeps at least one identity, banning or
// deactivating terminates every live session, and a password change revokes
// every session except the one performing it.
type User struct {
	id              uuid.UUID
	email           Email
	firstName       string
	lastName        string
	role            Role
	isActive        bool
	isEmailVerified bool
	isAnonymous     bool
	banned          bool
	banReason       string
	banExpires      *time.Time
	image           string
	anonymousAcctID *uuid.UUID
	lastLoginAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	version         int64

	identities []*Identity
	sessions   []*Session

	// currentSession marks the session performing the present operation.
	// Transient, never persisted.
	currentSession *Session

	events []Event
}

// New creates a regular user account with defaults: active, unverified,
// unbanned. Emits UserCreated.
func New(id uuid.UUID, rawEmail, firstName, lastName string, role Role) (*User, error) {
	email, err := NewEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = RoleUser
	}
	now := time.Now()
	u := &User{
		id:        id,
		email:     email,
		firstName: firstName,
		lastName:  lastName,
		role:      role,
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}
	u.record(UserCreated{eventBase: u.base(), Email: email.String()})
	return u, nil
}

// NewAnonymous creates an anonymous account with no email. Emits UserCreated
// and UserAnonymous.
func NewAnonymous(id uuid.UUID, creditAccountID *uuid.UUID) *User {
	now := time.Now()
	u := &User{
		id:              id,
		role:            RoleUser,
		isActive:        true,
		isAnonymous:     true,
		anonymousAcctID: creditAccountID,
		createdAt:       now,
		updatedAt:       now,
	}
	u.record(UserCreated{eventBase: u.base(), IsAnonymous: true})
	u.record(UserAnonymous{eventBase: u.base()})
	return u
}

func (u *User) ID() uuid.UUID                    { return u.id }
func (u *User) Email() Email                     { return u.email }
func (u *User) FirstName() string                { return u.firstName }
func (u *User) LastName() string                 { return u.lastName }
func (u *User) Role() Role                       { return u.role }
func (u *User) IsActive() bool                   { return u.isActive }
func (u *User) IsEmailVerified() bool            { return u.isEmailVerified }
func (u *User) IsAnonymous() bool                { return u.isAnonymous }
func (u *User) IsBanned() bool                   { return u.banned }
func (u *User) BanReason() string                { return u.banReason }
func (u *User) BanExpires() *time.Time           { return u.banExpires }
func (u *User) Image() string                    { return u.image }
func (u *User) AnonymousAccountID() *uuid.UUID   { return u.anonymousAcctID }
func (u *User) LastLoginAt() *time.Time          { return u.lastLoginAt }
func (u *User) CreatedAt() time.Time             { return u.createdAt }
func (u *User) UpdatedAt() time.Time             { return u.updatedAt }
func (u *User) Version() int64                   { return u.version }
func (u *User) CurrentSession() *Session         { return u.currentSession }

// MarkPersisted advances the optimistic concurrency version after a
// successful save. Repositories call this; nothing else should.
func (u *User) MarkPersisted() { u.version++ }

func (u *User) Identities() []*Identity {
	out := make([]*Identity, len(u.identities))
	copy(out, u.identities)
	return out
}

func (u *User) Sessions() []*Session {
	out := make([]*Session, len(u.sessions))
	copy(out, u.sessions)
	return out
}

// IdentityOptions carries the optional attributes of a new or updated
// identity. Password is required for credential identities and forbidden for
// OAuth ones.
type IdentityOptions struct {
	Email          string
	Name           string
	Scopes         []string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	Password       *Password
}

// CreateIdentity builds and attaches a new identity. The password-iff-
// credential invariant is enforced here; persistence-level uniqueness of
// provider+providerUserID is the repository's concern.
func (u *User) CreateIdentity(id uuid.UUID, provider Provider, providerUserID string, opts IdentityOptions) (*Identity, error) {
	if _, err := ParseProvider(string(provider)); err != nil {
		return nil, err
	}
	if provider == ProviderCredential {
		if opts.Password == nil || opts.Password.IsZero() {
			return nil, ErrInvalidIdentityOperation
		}
	} else if opts.Password != nil {
		return nil, ErrInvalidIdentityOperation
	}
	now := time.Now()
	ident := &Identity{
		id:             id,
		userID:         u.id,
		provider:       provider,
		providerUserID: providerUserID,
		email:          opts.Email,
		name:           opts.Name,
		scopes:         append([]string(nil), opts.Scopes...),
		accessToken:    opts.AccessToken,
		refreshToken:   opts.RefreshToken,
		tokenExpiresAt: opts.TokenExpiresAt,
		createdAt:      now,
		updatedAt:      now,
	}
	if opts.Password != nil {
		ident.password = *opts.Password
	}
	u.identities = append(u.identities, ident)
	u.touch()
	return ident, nil
}

// UnlinkIdentity logically removes an identity. The last remaining identity
// can never be unlinked.
func (u *User) UnlinkIdentity(identityID uuid.UUID) error {
	ident := u.identity(identityID)
	if ident == nil {
		return ErrIdentityNotFound
	}
	if u.activeIdentityCount() <= 1 {
		return ErrCannotUnlinkLastIdentity
	}
	ident.markRemoved()
	u.touch()
	return nil
}

// UpdateIdentity updates the profile fields mirrored from a provider.
func (u *User) UpdateIdentity(identityID uuid.UUID, email, name string) error {
	ident := u.identity(identityID)
	if ident == nil {
		return ErrIdentityNotFound
	}
	ident.updateProfile(email, name)
	u.touch()
	return nil
}

// UpdateIdentityTokens replaces the OAuth token set of an identity.
func (u *User) UpdateIdentityTokens(identityID uuid.UUID, access, refresh string, expiresAt *time.Time) error {
	ident := u.identity(identityID)
	if ident == nil {
		return ErrIdentityNotFound
	}
	if !ident.provider.IsOAuth() {
		return ErrInvalidIdentityOperation
	}
	ident.updateTokens(access, refresh, expiresAt)
	u.touch()
	return nil
}

// UpdateIdentityScopes replaces the scope set. A structurally equal set is a
// no-op with no timestamp churn.
func (u *User) UpdateIdentityScopes(identityID uuid.UUID, scopes []string) error {
	ident := u.identity(identityID)
	if ident == nil {
		return ErrIdentityNotFound
	}
	if ident.updateScopes(scopes) {
		u.touch()
	}
	return nil
}

// Authenticate verifies a plaintext password against the credential identity
// and then checks account state. Every failure path that depends on the
// credential collapses to ErrInvalidCredentials.
func (u *User) Authenticate(plainPassword string) error {
	ident := u.credentialIdentity()
	if ident == nil {
		return ErrInvalidCredentials
	}
	ok, err := ident.VerifyPassword(plainPassword)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	return u.CheckCanLogin()
}

// CheckCanLogin evaluates account state in severity order: deactivation
// outranks a ban, a ban outranks missing verification. Anonymous users skip
// the verification check.
func (u *User) CheckCanLogin() error {
	if !u.isActive {
		return ErrAccountDeactivated
	}
	if u.banned {
		return &AccountBannedError{Reason: u.banReason, ExpiresAt: u.banExpires}
	}
	if !u.isAnonymous && !u.isEmailVerified {
		return ErrEmailNotVerified
	}
	return nil
}

// RecordLogin stamps the successful login and emits UserLoggedIn.
func (u *User) RecordLogin() {
	now := time.Now()
	u.lastLoginAt = &now
	u.touch()
	u.record(UserLoggedIn{eventBase: u.base()})
}

// Ban blocks the account and terminates every session. expiresInDays <= 0
// means permanent. No-op if already banned.
func (u *User) Ban(reason string, expiresInDays int) {
	if u.banned {
		return
	}
	u.banned = true
	u.banReason = reason
	u.banExpires = nil
	if expiresInDays > 0 {
		exp := time.Now().AddDate(0, 0, expiresInDays)
		u.banExpires = &exp
	}
	u.touch()
	u.record(UserBanned{eventBase: u.base(), Reason: reason, ExpiresAt: u.banExpires})
	u.RevokeAllSessions()
}

// Unban clears the ban fields. Sessions terminated by the ban stay
// terminated. No-op if not banned.
func (u *User) Unban() {
	if !u.banned {
		return
	}
	u.banned = false
	u.banReason = ""
	u.banExpires = nil
	u.touch()
	u.record(UserUnbanned{eventBase: u.base()})
}

// IsBanExpired reports whether a temporary ban has lapsed. Callers decide
// whether to follow up with Unban; this is a pure query.
func (u *User) IsBanExpired() bool {
	return u.banned && u.banExpires != nil && time.Now().After(*u.banExpires)
}

// Deactivate disables the account and terminates every session. No-op if
// already inactive.
func (u *User) Deactivate() {
	if !u.isActive {
		return
	}
	u.isActive = false
	u.touch()
	u.record(UserDeactivated{eventBase: u.base()})
	u.RevokeAllSessions()
}

// Activate re-enables the account. No-op if already active.
func (u *User) Activate() {
	if u.isActive {
		return
	}
	u.isActive = true
	u.touch()
	u.record(UserActivated{eventBase: u.base()})
}

// VerifyEmail marks the address verified. No-op if already verified.
func (u *User) VerifyEmail() {
	if u.isEmailVerified {
		return
	}
	u.isEmailVerified = true
	u.touch()
	u.record(UserEmailVerified{eventBase: u.base()})
}

// UpdatePassword replaces the credential identity's hash and revokes every
// other session, so the session performing the change survives.
func (u *User) UpdatePassword(p Password) error {
	ident := u.credentialIdentity()
	if ident == nil {
		return ErrIdentityNotFound
	}
	ident.setPassword(p)
	u.touch()
	u.record(UserPasswordChanged{eventBase: u.base()})
	u.RevokeOtherSessions()
	return nil
}

// Rename changes the display name and emits UserProfileUpdated.
func (u *User) Rename(firstName, lastName string) {
	if u.firstName == firstName && u.lastName == lastName {
		return
	}
	u.firstName = firstName
	u.lastName = lastName
	u.touch()
	u.record(UserProfileUpdated{eventBase: u.base(), Fields: []string{"first_name", "last_name"}})
}

// ChangeImage replaces the profile image URL.
func (u *User) ChangeImage(url string) {
	if u.image == url {
		return
	}
	u.image = url
	u.touch()
	u.record(UserProfileUpdated{eventBase: u.base(), Fields: []string{"image"}})
}

// ConvertToRegular turns an anonymous account into a regular one: the
// anonymous credit account link is cleared and the email set. Emits
// UserRegular.
func (u *User) ConvertToRegular(rawEmail string) error {
	if !u.isAnonymous {
		return ErrNotAnonymous
	}
	email, err := NewEmail(rawEmail)
	if err != nil {
		return err
	}
	u.isAnonymous = false
	u.anonymousAcctID = nil
	u.email = email
	u.touch()
	u.record(UserRegular{eventBase: u.base(), Email: email.String()})
	return nil
}

// SetCurrentSession registers the session (if untracked) and marks it as the
// one performing the present operation. The marker is transient.
func (u *User) SetCurrentSession(s *Session) error {
	if s.UserID() != u.id {
		return ErrSessionNotOwned
	}
	if u.session(s.ID()) == nil {
		u.sessions = append(u.sessions, s)
	}
	u.currentSession = s
	return nil
}

// RevokeSession terminates one session by id.
func (u *User) RevokeSession(sessionID uuid.UUID) error {
	s := u.session(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	s.Terminate()
	u.touch()
	u.record(UserSessionRevoked{eventBase: u.base(), SessionID: sessionID})
	return nil
}

// RevokeAllSessions terminates every tracked session.
func (u *User) RevokeAllSessions() {
	for _, s := range u.sessions {
		s.Terminate()
	}
	u.touch()
	u.record(UserAllSessionsRevoked{eventBase: u.base()})
}

// RevokeOtherSessions terminates every session except the current one.
// Degrades to RevokeAllSessions when no current session is set.
func (u *User) RevokeOtherSessions() {
	if u.currentSession == nil {
		u.RevokeAllSessions()
		return
	}
	keep := u.currentSession.ID()
	for _, s := range u.sessions {
		if s.ID() != keep {
			s.Terminate()
		}
	}
	u.touch()
	u.record(UserAllSessionsRevoked{eventBase: u.base(), ExceptSessionID: &keep})
}

// PullEvents drains the queued domain events.
func (u *User) PullEvents() []Event {
	out := u.events
	u.events = nil
	return out
}

func (u *User) identity(id uuid.UUID) *Identity {
	for _, i := range u.identities {
		if i.id == id && !i.removed {
			return i
		}
	}
	return nil
}

func (u *User) credentialIdentity() *Identity {
	for _, i := range u.identities {
		if i.provider == ProviderCredential && !i.removed {
			return i
		}
	}
	return nil
}

func (u *User) activeIdentityCount() int {
	n := 0
	for _, i := range u.identities {
		if !i.removed {
			n++
		}
	}
	return n
}

func (u *User) session(id uuid.UUID) *Session {
	for _, s := range u.sessions {
		if s.id == id {
			return s
		}
	}
	return nil
}

func (u *User) touch() { u.updatedAt = time.Now() }

func (u *User) record(e Event) { u.events = append(u.events, e) }

func (u *User) base() eventBase {
	return eventBase{UserID: u.id, At: time.Now()}
}

// UserRecord is the persistence snapshot of the aggregate. Version backs the
// optimistic concurrency check at save time.
type UserRecord struct {
	ID                 uuid.UUID
	Email              string
	FirstName          string
	LastName           string
	Role               string
	IsActive           bool
	IsEmailVerified    bool
	IsAnonymous        bool
	Banned             bool
	BanReason          string
	BanExpires         *time.Time
	Image              string
	AnonymousAccountID *uuid.UUID
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	Identities         []IdentityRecord
	Sessions           []SessionRecord
}

// Reconstitute rebuilds the aggregate from storage without emitting creation
// events.
func Reconstitute(rec UserRecord) *User {
	u := &User{
		id:              rec.ID,
		email:           Email{value: rec.Email},
		firstName:       rec.FirstName,
		lastName:        rec.LastName,
		role:            Role(rec.Role),
		isActive:        rec.IsActive,
		isEmailVerified: rec.IsEmailVerified,
		isAnonymous:     rec.IsAnonymous,
		banned:          rec.Banned,
		banReason:       rec.BanReason,
		banExpires:      rec.BanExpires,
		image:           rec.Image,
		anonymousAcctID: rec.AnonymousAccountID,
		lastLoginAt:     rec.LastLoginAt,
		createdAt:       rec.CreatedAt,
		updatedAt:       rec.UpdatedAt,
		version:         rec.Version,
	}
	for _, ir := range rec.Identities {
		u.identities = append(u.identities, ReconstituteIdentity(ir))
	}
	for _, sr := range rec.Sessions {
		u.sessions = append(u.sessions, ReconstituteSession(sr))
	}
	return u
}

// Record snapshots the aggregate for persistence.
func (u *User) Record() UserRecord {
	rec := UserRecord{
		ID:                 u.id,
		Email:              u.email.String(),
		FirstName:          u.firstName,
		LastName:           u.lastName,
		Role:               string(u.role),
		IsActive:           u.isActive,
		IsEmailVerified:    u.isEmailVerified,
		IsAnonymous:        u.isAnonymous,
		Banned:             u.banned,
		BanReason:          u.banReason,
		BanExpires:         u.banExpires,
		Image:              u.image,
		AnonymousAccountID: u.anonymousAcctID,
		LastLoginAt:        u.lastLoginAt,
		CreatedAt:          u.createdAt,
		UpdatedAt:          u.updatedAt,
		Version:            u.version,
	}
	for _, i := range u.identities {
		rec.Identities = append(rec.Identities, i.Record())
	}
	for _, s := range u.sessions {
		rec.Sessions = append(rec.Sessions, s.Record())
	}
	return rec
}
