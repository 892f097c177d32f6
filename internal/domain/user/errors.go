package user

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors are expected, non-fatal outcomes of aggregate operations.
// Infrastructure failures (I/O, timeouts) are never mapped onto these.
var (
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrIdentityNotFound             = errors.New("identity not found")
	ErrCannotUnlinkLastIdentity     = errors.New("cannot unlink the last identity")
	ErrIdentityProviderNotSupported = errors.New("identity provider not supported")
	ErrInvalidIdentityOperation     = errors.New("operation not valid for this identity")

	ErrAccountDeactivated = errors.New("user account is deactivated")
	ErrEmailNotVerified   = errors.New("email address is not verified")
	ErrNotAnonymous       = errors.New("user is not anonymous")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotOwned = errors.New("session does not belong to this user")

	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordTooWeak  = errors.New("password must contain upper, lower, digit and special characters")
)

// AccountBannedError carries the ban reason and, for temporary bans, the
// expiry. ExpiresAt is nil for permanent bans.
type AccountBannedError struct {
	Reason    string
	ExpiresAt *time.Time
}

func (e *AccountBannedError) Error() string {
	if e.ExpiresAt != nil {
		return fmt.Sprintf("user account is banned until %s: %s", e.ExpiresAt.Format(time.RFC3339), e.Reason)
	}
	if e.Reason != "" {
		return "user account is banned: " + e.Reason
	}
	return "user account is banned"
}

// IsAccountBanned reports whether err is an AccountBannedError.
func IsAccountBanned(err error) bool {
	var be *AccountBannedError
	return errors.As(err, &be)
}
